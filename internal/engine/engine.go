// Package engine drives the round-based simulation state machine. It owns
// the only mutable world state and is the single authority agents cannot
// fool with a claim alone: every action is validated against the ledger and
// registry before anything changes.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"info_arena/internal/agentview"
	"info_arena/internal/comms"
	"info_arena/internal/decision"
	"info_arena/internal/domain"
	"info_arena/internal/ledger"
	"info_arena/internal/reports"
	"info_arena/internal/scoring"
	"info_arena/internal/tasks"
)

type State string

const (
	StateInitializing    State = "initializing"
	StateRoundInProgress State = "round_in_progress"
	StateReportPending   State = "report_pending"
	StateTerminated      State = "terminated"
)

// Sink receives every event the engine emits. The sqlite store, the archive
// writer and the live bus all satisfy it.
type Sink interface {
	Append(ctx context.Context, event domain.Event) error
}

type AgentSpec struct {
	ID   string
	Type domain.AgentType
}

type Config struct {
	RunID  string
	Rounds int
	Agents []AgentSpec

	PieceNames     []string
	PiecesPerAgent int
	TaskTemplates  []string
	PiecesPerTask  int
	ReplenishTasks bool

	Scoring scoring.Config

	ReportFrequency int
	MinNarrative    int

	MaxMessagesPerRound int
	Visibility          domain.RankingVisibility

	MessageWindow   int
	BroadcastWindow int
	SystemWindow    int
	ReportWindow    int
	HistoryLimit    int

	DecisionTimeout time.Duration
	Seed            int64
}

func (c Config) withDefaults() Config {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Rounds <= 0 {
		c.Rounds = 10
	}
	if c.PiecesPerTask <= 0 {
		c.PiecesPerTask = 4
	}
	if c.Visibility == "" {
		c.Visibility = domain.RankingVisibilityFull
	}
	if c.MessageWindow <= 0 {
		c.MessageWindow = 10
	}
	if c.BroadcastWindow <= 0 {
		c.BroadcastWindow = 10
	}
	if c.SystemWindow <= 0 {
		c.SystemWindow = 10
	}
	if c.ReportWindow <= 0 {
		c.ReportWindow = 3
	}
	if c.MinNarrative <= 0 {
		c.MinNarrative = 40
	}
	if c.DecisionTimeout <= 0 {
		c.DecisionTimeout = 30 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

type Engine struct {
	cfg     Config
	decider decision.Decider
	sink    Sink
	logger  *log.Logger

	rng      *rand.Rand
	ledger   *ledger.Ledger
	registry *tasks.Registry
	comms    *comms.Log
	board    *scoring.Board
	reports  *reports.Collector
	agents   map[string]*domain.Agent
	views    map[string]*agentview.View
	order    []string

	state        State
	round        int
	seq          int64
	firstAwarded bool
}

func New(cfg Config, decider decision.Decider, sink Sink, logger *log.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:     cfg,
		decider: decider,
		sink:    sink,
		logger:  logger,
		state:   StateInitializing,
	}
}

func (e *Engine) State() State { return e.state }

func (e *Engine) RunID() string { return e.cfg.RunID }

// Rankings returns the current leaderboard; final after Run returns.
func (e *Engine) Rankings() []domain.ScoreEntry {
	if e.board == nil {
		return nil
	}
	return e.board.Rankings()
}

// Run executes the whole simulation. Configuration problems abort before
// round 1; after that no per-action failure is fatal, only a sink write
// failure or context cancellation.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.initialize(ctx); err != nil {
		return err
	}
	for round := 1; round <= e.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run %s aborted in round %d: %w", e.cfg.RunID, round, err)
		}
		if err := e.runRound(ctx, round); err != nil {
			return fmt.Errorf("run %s round %d: %w", e.cfg.RunID, round, err)
		}
	}
	e.state = StateTerminated
	if err := e.emit(ctx, e.cfg.Rounds, domain.EventSimulationFinished, "", domain.SimulationFinishedPayload{
		Rounds:   e.cfg.Rounds,
		Rankings: e.board.Rankings(),
	}); err != nil {
		return err
	}
	e.logger.Printf("simulation finished run=%s rounds=%d agents=%d", e.cfg.RunID, e.cfg.Rounds, len(e.order))
	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	if len(e.cfg.Agents) < 2 {
		return domain.ConfigurationError{Reason: "simulation needs at least two agents"}
	}
	if e.decider == nil {
		return domain.ConfigurationError{Reason: "no decision service configured"}
	}
	if e.sink == nil {
		return domain.ConfigurationError{Reason: "no event sink configured"}
	}

	e.rng = rand.New(rand.NewSource(e.cfg.Seed))
	e.ledger = ledger.New()
	e.registry = tasks.NewRegistry()
	e.comms = comms.NewLog(e.cfg.MaxMessagesPerRound)
	e.reports = reports.NewCollector(e.cfg.ReportFrequency, e.cfg.MinNarrative)
	e.agents = make(map[string]*domain.Agent, len(e.cfg.Agents))
	e.views = make(map[string]*agentview.View, len(e.cfg.Agents))
	e.order = make([]string, 0, len(e.cfg.Agents))

	for _, spec := range e.cfg.Agents {
		if _, dup := e.agents[spec.ID]; dup {
			return domain.ConfigurationError{Reason: "duplicate agent id " + spec.ID}
		}
		typ := spec.Type
		if typ == "" {
			typ = domain.AgentTypeCompetitive
		}
		e.agents[spec.ID] = domain.NewAgent(spec.ID, typ)
		e.views[spec.ID] = agentview.New(spec.ID, e.cfg.HistoryLimit)
		e.order = append(e.order, spec.ID)
	}
	sort.Strings(e.order)
	e.board = scoring.NewBoard(e.cfg.Scoring, e.order)

	if err := e.emit(ctx, 0, domain.EventSimulationStarted, "", e.configSnapshot()); err != nil {
		return err
	}

	if err := e.ledger.InitializeDistribution(e.rng, e.cfg.PieceNames, e.order, e.cfg.PiecesPerAgent); err != nil {
		return err
	}
	possessions := make(map[string][]domain.PieceInstance, len(e.order))
	for _, id := range e.order {
		possessions[id] = e.ledger.Possessions(id)
		e.views[id].Sync(e.ledger)
	}
	if err := e.emit(ctx, 0, domain.EventDistributionCreated, "", domain.DistributionPayload{Possessions: possessions}); err != nil {
		return err
	}

	for _, id := range e.order {
		if err := e.generateTask(ctx, id, 0); err != nil {
			return err
		}
	}
	e.logger.Printf("simulation initialized run=%s agents=%d pieces=%d seed=%d",
		e.cfg.RunID, len(e.order), len(e.cfg.PieceNames), e.cfg.Seed)
	return nil
}

func (e *Engine) runRound(ctx context.Context, round int) error {
	e.state = StateRoundInProgress
	e.round = round
	e.firstAwarded = false
	e.comms.BeginRound(round)

	if err := e.emit(ctx, round, domain.EventRoundStarted, "", nil); err != nil {
		return err
	}

	order := e.shuffledOrder()
	for _, agent := range order {
		if err := e.runTurn(ctx, agent, round); err != nil {
			return err
		}
	}

	if e.reports.Due(round) {
		e.state = StateReportPending
		if err := e.collectReports(ctx, round); err != nil {
			return err
		}
	}

	return e.emit(ctx, round, domain.EventRoundSummary, "", domain.RoundSummaryPayload{
		Round:    round,
		Rankings: e.board.Rankings(),
	})
}

func (e *Engine) runTurn(ctx context.Context, agent string, round int) error {
	turn, err := e.buildContext(ctx, agent, round, decision.PhaseTurn)
	if err != nil {
		return err
	}
	actions, err := e.decide(ctx, turn)
	if err != nil {
		if emitErr := e.emit(ctx, round, domain.EventDecisionFailed, agent, domain.RejectionPayload{
			Kind:   "decide",
			Reason: err.Error(),
		}); emitErr != nil {
			return emitErr
		}
		e.logger.Printf("decision failed run=%s round=%d agent=%s err=%v", e.cfg.RunID, round, agent, err)
		return nil
	}
	for _, action := range actions {
		if err := e.apply(ctx, agent, round, action); err != nil {
			return err
		}
	}
	return nil
}

// decide calls the external decision service with the configured timeout. A
// timeout or malformed reply degrades to a no-op turn.
func (e *Engine) decide(ctx context.Context, turn decision.TurnContext) ([]domain.Action, error) {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DecisionTimeout)
	defer cancel()
	actions, err := e.decider.Decide(dctx, turn)
	if err != nil {
		return nil, domain.DecisionServiceError{Agent: turn.Agent, Cause: err}
	}
	return actions, nil
}

func (e *Engine) collectReports(ctx context.Context, round int) error {
	for _, agent := range e.order {
		turn, err := e.buildContext(ctx, agent, round, decision.PhaseReport)
		if err != nil {
			return err
		}
		actions, err := e.decide(ctx, turn)
		if err != nil {
			if emitErr := e.emit(ctx, round, domain.EventReportRejected, agent, domain.RejectionPayload{
				Kind:   "decide",
				Reason: err.Error(),
			}); emitErr != nil {
				return emitErr
			}
			continue
		}
		if err := e.applyReportPhase(ctx, agent, round, actions); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) buildContext(ctx context.Context, agent string, round int, phase decision.Phase) (decision.TurnContext, error) {
	view := e.views[agent]
	record := e.agents[agent]

	if div := view.Sync(e.ledger); !div.Empty() {
		if err := e.emit(ctx, round, domain.EventStateDivergence, agent, div); err != nil {
			return decision.TurnContext{}, err
		}
		e.logger.Printf("state divergence run=%s round=%d agent=%s missing=%v extra=%v",
			e.cfg.RunID, round, agent, div.Missing, div.Extra)
	}

	var rankings []domain.ScoreEntry
	if e.cfg.Visibility == domain.RankingVisibilityFull {
		rankings = e.board.Rankings()
	} else if entry, ok := e.board.Entry(agent); ok {
		rankings = []domain.ScoreEntry{entry}
	}

	return decision.TurnContext{
		RunID:          e.cfg.RunID,
		Round:          round,
		TotalRounds:    e.cfg.Rounds,
		Agent:          agent,
		AgentType:      record.Type,
		Phase:          phase,
		Rankings:       rankings,
		OwnPosition:    e.board.Position(agent),
		Tasks:          e.registry.ActiveFor(agent),
		Possessions:    e.ledger.Possessions(agent),
		Directory:      e.ledger.DirectorySnapshot(),
		Messages:       e.comms.RecentFor(agent, domain.MessageKindDirect, e.cfg.MessageWindow),
		Broadcasts:     e.comms.RecentFor(agent, domain.MessageKindBroadcast, e.cfg.BroadcastWindow),
		SystemNotices:  e.comms.RecentFor(agent, domain.MessageKindSystem, e.cfg.SystemWindow),
		Reports:        e.reports.RecentBy(agent, e.cfg.ReportWindow),
		RequestCounts:  copyCounts(record.RequestCounts),
		ReceivedValues: flattenReceivedValues(record.ReceivedValues),
		Peers:          append([]string(nil), e.order...),
	}, nil
}

func (e *Engine) generateTask(ctx context.Context, agent string, round int) error {
	task, err := e.registry.Generate(e.rng, e.cfg.TaskTemplates, e.cfg.PieceNames, e.cfg.PiecesPerTask, agent, round)
	if err != nil {
		return err
	}
	return e.emit(ctx, round, domain.EventTaskGenerated, agent, task)
}

func (e *Engine) shuffledOrder() []string {
	order := append([]string(nil), e.order...)
	e.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

func (e *Engine) emit(ctx context.Context, round int, kind domain.EventKind, agent string, payload any) error {
	e.seq++
	event := domain.Event{
		RunID:     e.cfg.RunID,
		Seq:       e.seq,
		Round:     round,
		Kind:      kind,
		Agent:     agent,
		Payload:   mustJSON(payload),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.sink.Append(ctx, event); err != nil {
		return fmt.Errorf("append event seq %d kind %s: %w", event.Seq, kind, err)
	}
	return nil
}

func (e *Engine) configSnapshot() map[string]any {
	agents := make([]map[string]string, 0, len(e.cfg.Agents))
	for _, spec := range e.cfg.Agents {
		typ := spec.Type
		if typ == "" {
			typ = domain.AgentTypeCompetitive
		}
		agents = append(agents, map[string]string{"id": spec.ID, "type": string(typ)})
	}
	return map[string]any{
		"rounds":           e.cfg.Rounds,
		"agents":           agents,
		"total_pieces":     len(e.cfg.PieceNames),
		"pieces_per_agent": e.cfg.PiecesPerAgent,
		"pieces_per_task":  e.cfg.PiecesPerTask,
		"report_frequency": e.cfg.ReportFrequency,
		"visibility":       string(e.cfg.Visibility),
		"seed":             e.cfg.Seed,
	}
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func copyCounts(counts map[string]int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

func flattenReceivedValues(values map[string]map[string]int) map[string][]int {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string][]int, len(values))
	for sender, byPiece := range values {
		pieces := make([]string, 0, len(byPiece))
		for piece := range byPiece {
			pieces = append(pieces, piece)
		}
		sort.Strings(pieces)
		list := make([]int, 0, len(pieces))
		for _, piece := range pieces {
			list = append(list, byPiece[piece])
		}
		out[sender] = list
	}
	return out
}
