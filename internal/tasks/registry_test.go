package tasks

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"info_arena/internal/domain"
)

type fakePossession map[string]map[string]bool

func (f fakePossession) Possesses(agent, piece string) bool {
	return f[agent][piece]
}

var testTemplates = []string{"Compile the quarterly report using: %s"}

var testUniverse = []string{
	"Q1 sales data", "Q2 sales data", "Q3 sales data",
	"north region census", "south region census", "annual budget draft",
}

func TestGenerateSamplesDistinctPieces(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	reg := NewRegistry()

	task, err := reg.Generate(rng, testTemplates, testUniverse, 4, "a1", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(task.RequiredPieces) != 4 {
		t.Fatalf("required=%d want 4", len(task.RequiredPieces))
	}
	seen := map[string]bool{}
	for _, name := range task.RequiredPieces {
		if seen[name] {
			t.Fatalf("duplicate required piece %q", name)
		}
		seen[name] = true
		if !strings.Contains(task.Description, name) {
			t.Fatalf("description missing required piece %q: %s", name, task.Description)
		}
	}
}

func TestGenerateRejectsImpossibleRequirement(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	reg := NewRegistry()

	_, err := reg.Generate(rng, testTemplates, testUniverse[:2], 4, "a1", 1)
	var cfgErr domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err=%v want ConfigurationError", err)
	}
}

func TestValidateSubmissionRequiresTextAndPossession(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	reg := NewRegistry()
	task, err := reg.Generate(rng, testTemplates, testUniverse, 2, "a1", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	required := task.RequiredPieces

	possession := fakePossession{"a1": {required[0]: true, required[1]: true}}
	answer := "Combined result of: " + strings.Join(required, ", ")
	if err := reg.ValidateSubmission("a1", task.ID, answer, possession); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}

	// Answer text missing one required name.
	partial := "Combined result of: " + required[0]
	err = reg.ValidateSubmission("a1", task.ID, partial, possession)
	var incErr domain.IncompleteAnswerError
	if !errors.As(err, &incErr) {
		t.Fatalf("err=%v want IncompleteAnswerError", err)
	}
	if len(incErr.Missing) != 1 || incErr.Missing[0] != required[1] {
		t.Fatalf("missing=%v want [%s]", incErr.Missing, required[1])
	}

	// Complete answer text, but the agent only possesses one piece.
	thin := fakePossession{"a1": {required[0]: true}}
	err = reg.ValidateSubmission("a1", task.ID, answer, thin)
	var claimErr domain.UnauthorizedClaimError
	if !errors.As(err, &claimErr) {
		t.Fatalf("err=%v want UnauthorizedClaimError", err)
	}
	if claimErr.Piece != required[1] {
		t.Fatalf("claimed piece=%s want=%s", claimErr.Piece, required[1])
	}
}

func TestValidateSubmissionAllowsExtraContent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	reg := NewRegistry()
	task, err := reg.Generate(rng, testTemplates, testUniverse, 2, "a1", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	possession := fakePossession{"a1": {}}
	for _, name := range task.RequiredPieces {
		possession["a1"][name] = true
	}
	answer := "preamble " + task.RequiredPieces[1] + " filler " + task.RequiredPieces[0] + " trailing notes"
	if err := reg.ValidateSubmission("a1", task.ID, answer, possession); err != nil {
		t.Fatalf("order-independent answer rejected: %v", err)
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	reg := NewRegistry()
	task, err := reg.Generate(rng, testTemplates, testUniverse, 2, "a1", 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	done, err := reg.Complete(task.ID, "a1", 3)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed || done.CompletedBy != "a1" || done.CompletedRound != 3 {
		t.Fatalf("completion not recorded: %+v", done)
	}
	if _, err := reg.Complete(task.ID, "a1", 3); err == nil {
		t.Fatalf("expected second completion to fail")
	}
	if got := reg.ActiveFor("a1"); len(got) != 0 {
		t.Fatalf("completed task still active: %v", got)
	}
}
