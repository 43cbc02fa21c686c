package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"info_arena/internal/domain"
	"info_arena/internal/eventbus"
)

func dialStream(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestStreamFiltersByRun(t *testing.T) {
	bus := eventbus.New(16)
	server := NewStreamServer(bus, nil)
	ts := httptest.NewServer(server.Handler(func(r *http.Request) string {
		return r.URL.Query().Get("run")
	}))
	defer ts.Close()

	conn := dialStream(t, ts, "?run=r1")

	// The subscription happens inside the handler; give it a moment before
	// publishing, then send events for two runs.
	deadline := time.Now().Add(2 * time.Second)
	published := false
	for time.Now().Before(deadline) {
		if bus.SubscriberCount() > 0 {
			_ = bus.Append(context.Background(), domain.Event{RunID: "r2", Seq: 1, Kind: domain.EventRoundStarted})
			_ = bus.Append(context.Background(), domain.Event{RunID: "r1", Seq: 2, Kind: domain.EventRoundStarted})
			published = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !published {
		t.Fatalf("handler never subscribed to the bus")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.RunID != "r1" || got.Seq != 2 {
		t.Fatalf("stream delivered wrong event: %+v", got)
	}
}

func TestStreamWithoutFilterDeliversEverything(t *testing.T) {
	bus := eventbus.New(16)
	server := NewStreamServer(bus, nil)
	ts := httptest.NewServer(server.Handler(func(*http.Request) string { return "" }))
	defer ts.Close()

	conn := dialStream(t, ts, "")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && bus.SubscriberCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	_ = bus.Append(context.Background(), domain.Event{RunID: "r9", Seq: 7, Kind: domain.EventRoundSummary})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.RunID != "r9" || got.Seq != 7 {
		t.Fatalf("unexpected event: %+v", got)
	}
}
