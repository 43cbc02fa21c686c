package engine

import (
	"context"
	"fmt"

	"info_arena/internal/domain"
)

// apply validates and executes a single action during the turn phase. A
// rejection touches no state beyond the rejection event; the agent's
// remaining actions still run.
func (e *Engine) apply(ctx context.Context, agent string, round int, action domain.Action) error {
	e.views[agent].RecordAction(action)

	if err := action.Validate(); err != nil {
		return e.reject(ctx, agent, round, action.Kind, err)
	}

	switch action.Kind {
	case domain.ActionSendMessage:
		return e.applySendMessage(ctx, agent, round, action)
	case domain.ActionBroadcast:
		return e.applyBroadcast(ctx, agent, round, action)
	case domain.ActionTransferInformation:
		return e.applyTransfer(ctx, agent, round, action)
	case domain.ActionSubmitTask:
		return e.applySubmitTask(ctx, agent, round, action)
	case domain.ActionSubmitReport:
		return e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
			Reason: "reports are collected in the reporting phase, not during turns",
		})
	default:
		return e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
			Reason: "unknown action kind " + string(action.Kind),
		})
	}
}

func (e *Engine) applySendMessage(ctx context.Context, agent string, round int, action domain.Action) error {
	if _, known := e.agents[action.To]; !known {
		return e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
			Reason: "unknown recipient " + action.To,
		})
	}
	msg, err := e.comms.Record(agent, action.To, action.Content, domain.MessageKindDirect)
	if err != nil {
		return e.reject(ctx, agent, round, action.Kind, err)
	}
	// Direct messages are the request channel; the per-target counter is the
	// stonewalling signal surfaced back into the sender's decision context.
	e.agents[agent].RequestCounts[action.To]++
	return e.emit(ctx, round, domain.EventMessageSent, agent, msg)
}

func (e *Engine) applyBroadcast(ctx context.Context, agent string, round int, action domain.Action) error {
	msg, err := e.comms.Record(agent, "", action.Content, domain.MessageKindBroadcast)
	if err != nil {
		return e.reject(ctx, agent, round, action.Kind, err)
	}
	return e.emit(ctx, round, domain.EventMessageSent, agent, msg)
}

// applyTransfer is all or nothing across the action's pieces: every claimed
// possession is checked before the first ledger mutation.
func (e *Engine) applyTransfer(ctx context.Context, agent string, round int, action domain.Action) error {
	if _, known := e.agents[action.To]; !known {
		return e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
			Reason: "unknown recipient " + action.To,
		})
	}
	if action.To == agent {
		return e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
			Reason: "cannot transfer information to self",
		})
	}
	for _, piece := range action.Pieces {
		if !e.ledger.Possesses(agent, piece) {
			return e.reject(ctx, agent, round, action.Kind, domain.NotPossessedError{Agent: agent, Piece: piece})
		}
	}

	sender := e.agents[agent]
	recipient := e.agents[action.To]
	for i, piece := range action.Pieces {
		claimed := action.Values[i]
		record, err := e.ledger.Transfer(agent, action.To, piece, claimed, round)
		if err != nil {
			return fmt.Errorf("transfer %s from %s to %s: %w", piece, agent, action.To, err)
		}
		sender.SentPieces = append(sender.SentPieces, domain.SentRecord{
			To:           action.To,
			Piece:        piece,
			ClaimedValue: claimed,
			Round:        round,
		})
		recipient.RecordReceivedValue(agent, piece, claimed)
		e.views[action.To].NotePossession(piece)
		e.comms.SystemNotify(action.To, fmt.Sprintf(
			"received piece %q from %s with claimed value %d", piece, agent, claimed,
		))
		if err := e.emit(ctx, round, domain.EventTransferApplied, agent, record); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applySubmitTask(ctx context.Context, agent string, round int, action domain.Action) error {
	if err := e.registry.ValidateSubmission(agent, action.TaskID, action.Answer, e.ledger); err != nil {
		return e.reject(ctx, agent, round, action.Kind, err)
	}
	task, err := e.registry.Complete(action.TaskID, agent, round)
	if err != nil {
		return e.reject(ctx, agent, round, action.Kind, err)
	}

	first := !e.firstAwarded
	breakdown := e.board.ScoreCompletion(agent, task, e.ledger.Possessions(agent), first)
	if first {
		e.firstAwarded = true
	}
	e.comms.SystemNotify(agent, fmt.Sprintf(
		"task %s completed, awarded %.2f points", task.ID, breakdown.Total,
	))
	if err := e.emit(ctx, round, domain.EventTaskCompleted, agent, domain.CompletionPayload{
		TaskID:    task.ID,
		Pieces:    task.RequiredPieces,
		Breakdown: breakdown,
	}); err != nil {
		return err
	}

	if e.cfg.ReplenishTasks {
		return e.generateTask(ctx, agent, round)
	}
	return nil
}

// applyReportPhase accepts exactly the report actions; anything else an
// agent tries during the reporting phase is rejected.
func (e *Engine) applyReportPhase(ctx context.Context, agent string, round int, actions []domain.Action) error {
	submitted := false
	for _, action := range actions {
		if action.Kind != domain.ActionSubmitReport {
			if err := e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
				Reason: "only reports are accepted in the reporting phase",
			}); err != nil {
				return err
			}
			continue
		}
		if submitted {
			if err := e.reject(ctx, agent, round, action.Kind, domain.ValidationError{
				Reason: "agent already reported this round",
			}); err != nil {
				return err
			}
			continue
		}
		report, err := e.reports.Submit(agent, round, action.Narrative, action.Scores, e.order)
		if err != nil {
			if emitErr := e.emit(ctx, round, domain.EventReportRejected, agent, domain.RejectionPayload{
				Kind:   string(action.Kind),
				Reason: err.Error(),
			}); emitErr != nil {
				return emitErr
			}
			e.logger.Printf("report rejected run=%s round=%d agent=%s err=%v", e.cfg.RunID, round, agent, err)
			continue
		}
		submitted = true
		if err := e.emit(ctx, round, domain.EventReportSubmitted, agent, report); err != nil {
			return err
		}
	}
	if !submitted {
		if err := e.emit(ctx, round, domain.EventReportRejected, agent, domain.RejectionPayload{
			Kind:   "report_phase",
			Reason: "agent failed to submit a report this round",
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reject(ctx context.Context, agent string, round int, kind domain.ActionKind, cause error) error {
	e.logger.Printf("action rejected run=%s round=%d agent=%s kind=%s err=%v",
		e.cfg.RunID, round, agent, kind, cause)
	return e.emit(ctx, round, domain.EventActionRejected, agent, domain.RejectionPayload{
		Kind:   string(kind),
		Reason: cause.Error(),
	})
}
