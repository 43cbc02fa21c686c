package batch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"info_arena/internal/decision"
	"info_arena/internal/domain"
	"info_arena/internal/engine"
)

type nullSink struct{}

func (nullSink) Append(context.Context, domain.Event) error { return nil }

func solver(_ context.Context, turn decision.TurnContext) ([]domain.Action, error) {
	var actions []domain.Action
	for _, task := range turn.Tasks {
		actions = append(actions, domain.Action{
			Kind:   domain.ActionSubmitTask,
			TaskID: task.ID,
			Answer: strings.Join(task.RequiredPieces, ", "),
		})
	}
	return actions, nil
}

func buildEngine(index int) (*engine.Engine, error) {
	cfg := engine.Config{
		RunID:          fmt.Sprintf("run-%d", index),
		Rounds:         2,
		Agents:         []engine.AgentSpec{{ID: "a"}, {ID: "b"}},
		PieceNames:     []string{"alpha"},
		PiecesPerAgent: 1,
		TaskTemplates:  []string{"Combine %s"},
		PiecesPerTask:  1,
		Seed:           int64(index) + 1,
	}
	return engine.New(cfg, decision.DeciderFunc(solver), nullSink{}, nil), nil
}

func TestRunAllSimulations(t *testing.T) {
	runner := NewRunner(3, nil)
	results := runner.Run(context.Background(), 5, buildEngine)
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}
	for i, result := range results {
		if result.Err != nil {
			t.Fatalf("run %d failed: %v", i, result.Err)
		}
		if result.RunID != fmt.Sprintf("run-%d", i) {
			t.Fatalf("result %d has run id %q", i, result.RunID)
		}
		if len(result.Rankings) != 2 {
			t.Fatalf("run %d rankings missing: %+v", i, result.Rankings)
		}
	}
}

func TestOneFailureDoesNotAbortOthers(t *testing.T) {
	runner := NewRunner(2, nil)
	build := func(index int) (*engine.Engine, error) {
		if index == 1 {
			cfg := engine.Config{
				RunID:          "bad",
				Rounds:         1,
				Agents:         []engine.AgentSpec{{ID: "a"}, {ID: "b"}},
				PieceNames:     []string{"p1", "p2", "p3"},
				PiecesPerAgent: 1,
				TaskTemplates:  []string{"Combine %s"},
				Seed:           1,
			}
			// Two agents with one slot each cannot cover three pieces.
			return engine.New(cfg, decision.DeciderFunc(solver), nullSink{}, nil), nil
		}
		return buildEngine(index)
	}
	results := runner.Run(context.Background(), 3, build)
	if results[1].Err == nil {
		t.Fatalf("run 1 should fail on impossible coverage")
	}
	for _, i := range []int{0, 2} {
		if results[i].Err != nil {
			t.Fatalf("run %d failed: %v", i, results[i].Err)
		}
	}
}
