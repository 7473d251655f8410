package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/internetarchive/frontier/internal/pkg/queue"
)

// Stream serves the queue report deltas to WebSocket clients. The poller
// only runs while at least one client is connected.
type Stream struct {
	hub    *Hub
	poller *Poller
}

func New(source func() []queue.Report, interval time.Duration) *Stream {
	hub := NewHub()
	return &Stream{
		hub:    hub,
		poller: NewPoller(hub, source, interval),
	}
}

// Close stops the poller and disconnects every client
func (s *Stream) Close() {
	s.poller.Stop()
	s.hub.Close()
}

// ServeHTTP streams the queue deltas as JSON text messages, starting with
// the latest report of every queue
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		http.Error(w, "WebSocket upgrade failed", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	ch := s.hub.Subscribe()
	if s.hub.Subscribers() == 1 {
		s.poller.Start()
	}

	defer func() {
		s.hub.Unsubscribe(ch)
		if s.hub.Subscribers() == 0 {
			s.poller.Stop()
		}
	}()

	// the client only sends control frames, a read error means it left
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				s.hub.Unsubscribe(ch)
				return
			}
		}
	}()

	for delta := range ch {
		data, err := json.Marshal(delta)
		if err != nil {
			continue
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
			return
		}
	}
}
