// Package decision turns an agent's bounded view of the simulation into a
// list of actions for the current turn. Deciders never touch shared state;
// the engine validates and applies whatever they return.
package decision

import (
	"context"

	"info_arena/internal/domain"
)

type Phase string

const (
	PhaseTurn   Phase = "turn"
	PhaseReport Phase = "report"
)

// TurnContext is everything an agent is allowed to see when deciding.
// Rankings may be truncated to the agent's own entry depending on the run's
// visibility mode; OwnPosition is always populated.
type TurnContext struct {
	RunID       string           `json:"run_id"`
	Round       int              `json:"round"`
	TotalRounds int              `json:"total_rounds"`
	Agent       string           `json:"agent"`
	AgentType   domain.AgentType `json:"agent_type"`
	Phase       Phase            `json:"phase"`

	Rankings    []domain.ScoreEntry `json:"rankings,omitempty"`
	OwnPosition int                 `json:"own_position"`

	Tasks       []domain.Task          `json:"tasks"`
	Possessions []domain.PieceInstance `json:"possessions"`
	// Directory maps piece name to the agents known to hold an instance.
	Directory map[string][]string `json:"directory"`

	Messages      []domain.Message `json:"messages,omitempty"`
	Broadcasts    []domain.Message `json:"broadcasts,omitempty"`
	SystemNotices []domain.Message `json:"system_notices,omitempty"`

	Reports []domain.StrategicReport `json:"reports,omitempty"`

	// RequestCounts and ReceivedValues are the agent's own bookkeeping,
	// surfaced so a decider can spot stonewalling and suspected manipulation.
	RequestCounts  map[string]int   `json:"request_counts,omitempty"`
	ReceivedValues map[string][]int `json:"received_values,omitempty"`

	Peers []string `json:"peers"`
}

type Decider interface {
	Decide(ctx context.Context, turn TurnContext) ([]domain.Action, error)
}

// DeciderFunc adapts a plain function, mainly for scripted test agents.
type DeciderFunc func(ctx context.Context, turn TurnContext) ([]domain.Action, error)

func (f DeciderFunc) Decide(ctx context.Context, turn TurnContext) ([]domain.Action, error) {
	return f(ctx, turn)
}
