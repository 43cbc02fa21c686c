package eventbus

import (
	"context"
	"testing"
	"time"

	"info_arena/internal/domain"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := New(4)
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel1()
	defer cancel2()

	event := domain.Event{RunID: "r1", Seq: 1, Kind: domain.EventRoundStarted}
	if err := bus.Append(context.Background(), event); err != nil {
		t.Fatalf("append: %v", err)
	}

	for i, ch := range []<-chan domain.Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Seq != 1 {
				t.Fatalf("subscriber %d got %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	ctx := context.Background()
	for seq := int64(1); seq <= 3; seq++ {
		if err := bus.Append(ctx, domain.Event{RunID: "r1", Seq: seq}); err != nil {
			t.Fatalf("append seq %d: %v", seq, err)
		}
	}
	got := <-ch
	if got.Seq != 1 {
		t.Fatalf("buffered event seq = %d, want 1", got.Seq)
	}
	select {
	case extra := <-ch:
		t.Fatalf("overflow event %d should have been dropped", extra.Seq)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := New(1)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()

	if _, open := <-ch; open {
		t.Fatalf("channel must be closed after cancel")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", bus.SubscriberCount())
	}
}
