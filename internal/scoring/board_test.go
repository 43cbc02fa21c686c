package scoring

import (
	"math"
	"testing"

	"info_arena/internal/domain"
)

func testTask(pieces ...string) domain.Task {
	return domain.Task{ID: "t1", RequiredPieces: pieces, AssignedTo: "a1"}
}

func TestScoreCompletionQualityMultiplier(t *testing.T) {
	b := NewBoard(Config{BaseAward: 10, FirstBonus: 5, PenaltyRate: 0.3}, []string{"a1", "a2"})

	pieces := []domain.PieceInstance{
		{Name: "x", Quality: 80},
		{Name: "y", Quality: 60},
	}
	breakdown := b.ScoreCompletion("a1", testTask("x", "y"), pieces, false)

	if breakdown.MeanQuality != 70 {
		t.Fatalf("mean quality=%v want 70", breakdown.MeanQuality)
	}
	if breakdown.QualityAdjusted != 7 {
		t.Fatalf("quality adjusted=%v want 7", breakdown.QualityAdjusted)
	}
	if breakdown.Total != 7 {
		t.Fatalf("total=%v want 7", breakdown.Total)
	}
	entry, _ := b.Entry("a1")
	if entry.Points != 7 || entry.Completions != 1 {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestManipulationPenaltyIsExactFactor(t *testing.T) {
	b := NewBoard(Config{BaseAward: 10, FirstBonus: 5, PenaltyRate: 0.3}, []string{"a1", "a2"})

	clean := []domain.PieceInstance{
		{Name: "x", Quality: 80},
		{Name: "y", Quality: 60},
	}
	tainted := []domain.PieceInstance{
		{Name: "x", Quality: 80},
		{Name: "y", Quality: 60, ReceivedFrom: "a2", Manipulated: true},
	}

	cleanBreak := b.ScoreCompletion("a1", testTask("x", "y"), clean, false)
	taintedBreak := b.ScoreCompletion("a2", testTask("x", "y"), tainted, false)

	want := cleanBreak.Total * 0.7
	if math.Abs(taintedBreak.Total-want) > 1e-9 {
		t.Fatalf("penalized total=%v want exactly %v", taintedBreak.Total, want)
	}
	if !taintedBreak.Penalized {
		t.Fatalf("breakdown not marked penalized")
	}
	if taintedBreak.Total >= cleanBreak.Total {
		t.Fatalf("manipulated completion not strictly lower: %v >= %v", taintedBreak.Total, cleanBreak.Total)
	}
}

func TestFirstCompletionBonus(t *testing.T) {
	b := NewBoard(Config{BaseAward: 10, FirstBonus: 5, PenaltyRate: 0.3}, []string{"a1", "a2"})
	pieces := []domain.PieceInstance{{Name: "x", Quality: 100}}

	first := b.ScoreCompletion("a1", testTask("x"), pieces, true)
	second := b.ScoreCompletion("a2", testTask("x"), pieces, false)

	if first.Bonus != 5 {
		t.Fatalf("first bonus=%v want 5", first.Bonus)
	}
	if second.Bonus != 0 {
		t.Fatalf("second completion received bonus %v", second.Bonus)
	}
	if first.Total-second.Total != 5 {
		t.Fatalf("bonus delta=%v want 5", first.Total-second.Total)
	}
}

func TestRankingsDeterministicTieBreak(t *testing.T) {
	b := NewBoard(Config{}, []string{"carol", "alice", "bob"})
	pieces := []domain.PieceInstance{{Name: "x", Quality: 50}}

	b.ScoreCompletion("carol", testTask("x"), pieces, false)
	b.ScoreCompletion("alice", testTask("x"), pieces, false)

	rankings := b.Rankings()
	if len(rankings) != 3 {
		t.Fatalf("rankings size=%d want 3", len(rankings))
	}
	if rankings[0].AgentID != "alice" || rankings[1].AgentID != "carol" {
		t.Fatalf("tie not broken by identity: %s, %s", rankings[0].AgentID, rankings[1].AgentID)
	}
	if rankings[2].AgentID != "bob" {
		t.Fatalf("zero-score agent missing from rankings: %v", rankings)
	}
	if got := b.Position("bob"); got != 3 {
		t.Fatalf("position=%d want 3", got)
	}
}
