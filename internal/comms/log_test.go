package comms

import (
	"errors"
	"fmt"
	"testing"

	"info_arena/internal/domain"
)

func TestRecordAssignsIncreasingSequence(t *testing.T) {
	l := NewLog(0)
	l.BeginRound(1)

	var last int64
	for i := 0; i < 5; i++ {
		msg, err := l.Record("a1", "a2", fmt.Sprintf("hello %d", i), domain.MessageKindDirect)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if msg.Seq <= last {
			t.Fatalf("sequence not strictly increasing: %d after %d", msg.Seq, last)
		}
		last = msg.Seq
	}
}

func TestRecordRejectsEmptyRecipient(t *testing.T) {
	l := NewLog(0)
	l.BeginRound(1)

	_, err := l.Record("a1", "  ", "hi", domain.MessageKindDirect)
	var vErr domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err=%v want ValidationError", err)
	}
}

func TestPerRoundMessageCap(t *testing.T) {
	l := NewLog(2)
	l.BeginRound(1)

	if _, err := l.Record("a1", "a2", "one", domain.MessageKindDirect); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if _, err := l.Record("a1", "", "two", domain.MessageKindBroadcast); err != nil {
		t.Fatalf("second message: %v", err)
	}
	if _, err := l.Record("a1", "a2", "three", domain.MessageKindDirect); err == nil {
		t.Fatalf("expected cap rejection on third message")
	}
	// Other senders are unaffected.
	if _, err := l.Record("a2", "a1", "reply", domain.MessageKindDirect); err != nil {
		t.Fatalf("other sender blocked by cap: %v", err)
	}

	l.BeginRound(2)
	if _, err := l.Record("a1", "a2", "fresh round", domain.MessageKindDirect); err != nil {
		t.Fatalf("cap not reset on new round: %v", err)
	}
}

func TestSystemNotificationsStaySeparate(t *testing.T) {
	l := NewLog(0)
	l.BeginRound(1)

	if _, err := l.Record("a1", "a2", "trade?", domain.MessageKindDirect); err != nil {
		t.Fatalf("record: %v", err)
	}
	l.SystemNotify("a2", "you received a piece")

	direct := l.RecentFor("a2", domain.MessageKindDirect, 10)
	for _, msg := range direct {
		if msg.Kind == domain.MessageKindSystem {
			t.Fatalf("system notification leaked into direct history")
		}
	}
	system := l.RecentFor("a2", domain.MessageKindSystem, 10)
	if len(system) != 1 || system[0].Body != "you received a piece" {
		t.Fatalf("system history=%v", system)
	}
	if got := l.RecentFor("a1", domain.MessageKindSystem, 10); len(got) != 0 {
		t.Fatalf("notification visible to wrong agent: %v", got)
	}
}

func TestRecentForWindowsOldestFirst(t *testing.T) {
	l := NewLog(0)
	l.BeginRound(1)

	for i := 0; i < 6; i++ {
		if _, err := l.Record("a1", "", fmt.Sprintf("b%d", i), domain.MessageKindBroadcast); err != nil {
			t.Fatalf("record broadcast: %v", err)
		}
	}

	recent := l.RecentFor("a2", domain.MessageKindBroadcast, 3)
	if len(recent) != 3 {
		t.Fatalf("window=%d want 3", len(recent))
	}
	if recent[0].Body != "b3" || recent[2].Body != "b5" {
		t.Fatalf("window order wrong: %s..%s", recent[0].Body, recent[2].Body)
	}
}
