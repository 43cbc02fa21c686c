package domain

import (
	"encoding/json"
	"time"
)

type AgentType string

const (
	AgentTypeCompetitive AgentType = "competitive"
	AgentTypeObstructive AgentType = "obstructive"
)

type MessageKind string

const (
	MessageKindDirect    MessageKind = "direct"
	MessageKindBroadcast MessageKind = "broadcast"
	MessageKindSystem    MessageKind = "system"
)

// BroadcastRecipient is the sentinel recipient for broadcast messages.
const BroadcastRecipient = "broadcast"

type RankingVisibility string

const (
	RankingVisibilityFull RankingVisibility = "full"
	RankingVisibilityOwn  RankingVisibility = "own"
)

// PieceInstance is one agent's possession of a named information piece.
// Quality is fixed per name at world generation and identical across every
// instance of that name. Value travels with the instance and is set by the
// sender on transfer, which is the channel deception flows through.
type PieceInstance struct {
	Name         string `json:"name"`
	Quality      int    `json:"quality"`
	Value        int    `json:"value"`
	ReceivedFrom string `json:"received_from,omitempty"`
	Manipulated  bool   `json:"manipulated,omitempty"`
}

type Task struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	RequiredPieces []string `json:"required_pieces"`
	AssignedTo     string   `json:"assigned_to"`
	Completed      bool     `json:"completed"`
	CompletedBy    string   `json:"completed_by,omitempty"`
	CompletedRound int      `json:"completed_round,omitempty"`
	CreatedRound   int      `json:"created_round"`
}

// SentRecord remembers what value an agent claimed when sending a piece.
type SentRecord struct {
	To           string `json:"to"`
	Piece        string `json:"piece"`
	ClaimedValue int    `json:"claimed_value"`
	Round        int    `json:"round"`
}

type Agent struct {
	ID   string    `json:"id"`
	Type AgentType `json:"type"`

	SentPieces    []SentRecord   `json:"sent_pieces,omitempty"`
	RequestCounts map[string]int `json:"request_counts,omitempty"`
	// ReceivedValues maps sender -> piece name -> last claimed value, used to
	// detect manipulation by comparing across senders or against outcomes.
	ReceivedValues map[string]map[string]int `json:"received_values,omitempty"`
}

func NewAgent(id string, typ AgentType) *Agent {
	return &Agent{
		ID:             id,
		Type:           typ,
		RequestCounts:  make(map[string]int),
		ReceivedValues: make(map[string]map[string]int),
	}
}

func (a *Agent) RecordReceivedValue(sender, piece string, value int) {
	if a.ReceivedValues == nil {
		a.ReceivedValues = make(map[string]map[string]int)
	}
	byPiece, ok := a.ReceivedValues[sender]
	if !ok {
		byPiece = make(map[string]int)
		a.ReceivedValues[sender] = byPiece
	}
	byPiece[piece] = value
}

type Message struct {
	Seq       int64       `json:"seq"`
	Round     int         `json:"round"`
	Kind      MessageKind `json:"kind"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

type StrategicReport struct {
	Agent             string         `json:"agent"`
	Round             int            `json:"round"`
	Narrative         string         `json:"narrative"`
	CooperationScores map[string]int `json:"cooperation_scores"`
}

type ScoreEntry struct {
	AgentID     string  `json:"agent_id"`
	Points      float64 `json:"points"`
	Completions int     `json:"completions"`
}

// ScoreBreakdown is the structured award computation for one completion.
type ScoreBreakdown struct {
	Base            float64 `json:"base"`
	QualityAdjusted float64 `json:"quality_adjusted"`
	PenaltyAdjusted float64 `json:"penalty_adjusted"`
	Bonus           float64 `json:"bonus"`
	Total           float64 `json:"total"`
	MeanQuality     float64 `json:"mean_quality"`
	Penalized       bool    `json:"penalized"`
	FirstThisRound  bool    `json:"first_this_round"`
}

type TransferRecord struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Piece        string `json:"piece"`
	Quality      int    `json:"quality"`
	ClaimedValue int    `json:"claimed_value"`
	SenderValue  int    `json:"sender_value"`
	Manipulated  bool   `json:"manipulated"`
	Round        int    `json:"round"`
}

// Divergence is the difference between an agent's local possession cache and
// the ledger. The ledger always wins; this exists for logging only.
type Divergence struct {
	Agent   string   `json:"agent"`
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`
}

func (d Divergence) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

type EventKind string

const (
	EventSimulationStarted   EventKind = "simulation_started"
	EventSimulationFinished  EventKind = "simulation_finished"
	EventDistributionCreated EventKind = "distribution_created"
	EventRoundStarted        EventKind = "round_started"
	EventRoundSummary        EventKind = "round_summary"
	EventMessageSent         EventKind = "message_sent"
	EventTransferApplied     EventKind = "transfer_applied"
	EventTaskGenerated       EventKind = "task_generated"
	EventTaskCompleted       EventKind = "task_completed"
	EventActionRejected      EventKind = "action_rejected"
	EventDecisionFailed      EventKind = "decision_failed"
	EventReportSubmitted     EventKind = "report_submitted"
	EventReportRejected      EventKind = "report_rejected"
	EventStateDivergence     EventKind = "state_divergence"
)

// Event is one record of the append-only run log. The sequence number is
// strictly increasing within a run; replaying all events reconstructs the
// ledger, registry and scoreboard state.
type Event struct {
	RunID     string          `json:"run_id"`
	Seq       int64           `json:"seq"`
	Round     int             `json:"round"`
	Kind      EventKind       `json:"kind"`
	Agent     string          `json:"agent,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type DistributionPayload struct {
	Possessions map[string][]PieceInstance `json:"possessions"`
}

type CompletionPayload struct {
	TaskID    string         `json:"task_id"`
	Pieces    []string       `json:"pieces"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

type RoundSummaryPayload struct {
	Round    int          `json:"round"`
	Rankings []ScoreEntry `json:"rankings"`
}

type SimulationFinishedPayload struct {
	Rounds   int          `json:"rounds"`
	Rankings []ScoreEntry `json:"rankings"`
}

type RejectionPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type Run struct {
	ID         string          `json:"id"`
	Config     json.RawMessage `json:"config"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Rankings   []ScoreEntry    `json:"rankings,omitempty"`
}
