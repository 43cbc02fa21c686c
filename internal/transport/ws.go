// Package transport serves the live event stream over WebSocket. Clients
// subscribe to one run and receive its events as JSON text frames; the
// durable record stays in the sqlite log, so a dropped frame is never data
// loss.
package transport

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"info_arena/internal/domain"
	"info_arena/internal/eventbus"
)

const writeTimeout = 5 * time.Second

type StreamServer struct {
	bus    *eventbus.Bus
	logger *log.Logger

	upgrader websocket.Upgrader
}

func NewStreamServer(bus *eventbus.Bus, logger *log.Logger) *StreamServer {
	if logger == nil {
		logger = log.Default()
	}
	return &StreamServer{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler streams events for the run named by runID. An empty runID streams
// every run, which is what the monitor uses during batches.
func (s *StreamServer) Handler(runID func(r *http.Request) string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		wanted := runID(r)
		events, cancel := s.bus.Subscribe()
		defer cancel()

		// Reader goroutine: the client sends nothing meaningful, but reading
		// is how we notice it went away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if wanted != "" && event.RunID != wanted {
					continue
				}
				if err := s.writeEvent(conn, event); err != nil {
					s.logger.Printf("event stream write failed run=%s err=%v", event.RunID, err)
					return
				}
			}
		}
	}
}

func (s *StreamServer) writeEvent(conn *websocket.Conn, event domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(event)
}
