package agentview

import (
	"math/rand"
	"reflect"
	"testing"

	"info_arena/internal/domain"
	"info_arena/internal/ledger"
)

func seededLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New()
	rng := rand.New(rand.NewSource(11))
	if err := l.InitializeDistribution(rng, []string{"alpha", "beta", "gamma", "delta"}, []string{"a1", "a2"}, 2); err != nil {
		t.Fatalf("InitializeDistribution: %v", err)
	}
	return l
}

func TestSyncResolvesInLedgerFavor(t *testing.T) {
	l := seededLedger(t)
	v := New("a1", 0)
	v.NotePossession("not_real_piece")

	div := v.Sync(l)
	if div.Empty() {
		t.Fatalf("expected divergence between stale cache and ledger")
	}
	for _, extra := range div.Extra {
		if extra != "not_real_piece" {
			t.Fatalf("unexpected extra entry %q", extra)
		}
	}

	want := make([]string, 0)
	for _, inst := range l.Possessions("a1") {
		want = append(want, inst.Name)
	}
	if !reflect.DeepEqual(v.Possessions(), want) {
		t.Fatalf("cache after Sync = %v, want ledger view %v", v.Possessions(), want)
	}
	if !v.Sync(l).Empty() {
		t.Fatalf("second Sync must find no divergence")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	v := New("a1", 3)
	for i := 0; i < 5; i++ {
		v.RecordAction(domain.Action{Kind: domain.ActionBroadcast, Content: string(rune('a' + i))})
	}
	history := v.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Content != "c" || history[2].Content != "e" {
		t.Fatalf("history kept wrong window: %+v", history)
	}
}
