// Package eventlog derives simulation state back out of the append-only
// event record. The sqlite subpackage persists events; Replay folds them into
// the possession map and rankings a run ended with, which is how stored runs
// are audited without keeping any live state around.
package eventlog

import (
	"encoding/json"
	"fmt"
	"sort"

	"info_arena/internal/domain"
)

// RunState is the reduced view of a run at some point in its event stream.
type RunState struct {
	RunID       string
	Round       int
	Possessions map[string]map[string]struct{}
	Scores      map[string]*domain.ScoreEntry
	Completed   map[string]string
	Finished    bool
}

func newRunState(runID string) *RunState {
	return &RunState{
		RunID:       runID,
		Possessions: make(map[string]map[string]struct{}),
		Scores:      make(map[string]*domain.ScoreEntry),
		Completed:   make(map[string]string),
	}
}

// Rankings orders agents by points descending, ties broken by agent id, the
// same ordering the live scoreboard uses.
func (s *RunState) Rankings() []domain.ScoreEntry {
	result := make([]domain.ScoreEntry, 0, len(s.Scores))
	for _, entry := range s.Scores {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Points != result[j].Points {
			return result[i].Points > result[j].Points
		}
		return result[i].AgentID < result[j].AgentID
	})
	return result
}

// Replay folds a run's events, in sequence order, into final state. Events
// must belong to a single run.
func Replay(events []domain.Event) (*RunState, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to replay")
	}
	state := newRunState(events[0].RunID)
	var lastSeq int64
	for _, event := range events {
		if event.RunID != state.RunID {
			return nil, fmt.Errorf("event seq %d belongs to run %s, replaying %s", event.Seq, event.RunID, state.RunID)
		}
		if event.Seq <= lastSeq {
			return nil, fmt.Errorf("event sequence not strictly increasing at seq %d", event.Seq)
		}
		lastSeq = event.Seq
		if err := state.apply(event); err != nil {
			return nil, fmt.Errorf("apply event seq %d kind %s: %w", event.Seq, event.Kind, err)
		}
	}
	return state, nil
}

func (s *RunState) apply(event domain.Event) error {
	if event.Round > s.Round {
		s.Round = event.Round
	}
	switch event.Kind {
	case domain.EventDistributionCreated:
		var payload domain.DistributionPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		for agent, pieces := range payload.Possessions {
			s.ensureAgent(agent)
			for _, inst := range pieces {
				s.Possessions[agent][inst.Name] = struct{}{}
			}
		}
	case domain.EventTransferApplied:
		var record domain.TransferRecord
		if err := json.Unmarshal(event.Payload, &record); err != nil {
			return err
		}
		s.ensureAgent(record.To)
		s.Possessions[record.To][record.Piece] = struct{}{}
	case domain.EventTaskCompleted:
		var payload domain.CompletionPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		s.ensureAgent(event.Agent)
		if _, done := s.Completed[payload.TaskID]; done {
			return fmt.Errorf("task %s completed twice", payload.TaskID)
		}
		s.Completed[payload.TaskID] = event.Agent
		entry := s.Scores[event.Agent]
		entry.Points += payload.Breakdown.Total
		entry.Completions++
	case domain.EventSimulationFinished:
		s.Finished = true
	}
	return nil
}

func (s *RunState) ensureAgent(agent string) {
	if agent == "" {
		return
	}
	if _, ok := s.Possessions[agent]; !ok {
		s.Possessions[agent] = make(map[string]struct{})
	}
	if _, ok := s.Scores[agent]; !ok {
		s.Scores[agent] = &domain.ScoreEntry{AgentID: agent}
	}
}
