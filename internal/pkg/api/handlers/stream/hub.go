// Package stream provides WebSocket streaming of queue report deltas.
package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/queue"
)

// subscriberBuffer is the number of deltas a client may lag behind before
// it is dropped
const subscriberBuffer = 16

// Delta is the change of the queue reports since the previous delta
type Delta struct {
	Time    time.Time      `json:"time"`
	Updated []queue.Report `json:"updated,omitempty"`
	Removed []string       `json:"removed,omitempty"`
}

func (d Delta) empty() bool {
	return len(d.Updated) == 0 && len(d.Removed) == 0
}

// Hub fans the deltas out to the subscribed clients. It keeps the latest
// report of every queue, a new subscriber first receives all of them.
type Hub struct {
	mu          sync.Mutex
	reports     map[string]queue.Report
	subscribers map[chan Delta]struct{}
	closed      bool
}

func NewHub() *Hub {
	return &Hub{
		reports:     make(map[string]queue.Report),
		subscribers: make(map[chan Delta]struct{}),
	}
}

// Subscribe returns the channel of a new client. The channel is closed when
// the client is unsubscribed, dropped for lagging or when the hub closes.
func (h *Hub) Subscribe() chan Delta {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Delta, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch
	}

	if len(h.reports) > 0 {
		ch <- Delta{Time: time.Now(), Updated: h.latestLocked()}
	}
	h.subscribers[ch] = struct{}{}

	return ch
}

// Unsubscribe removes a client, it may be called more than once
func (h *Hub) Unsubscribe(ch chan Delta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(ch)
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// Publish records d as the latest state and sends it to every client
func (h *Hub) Publish(d Delta) {
	if d.empty() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for _, r := range d.Updated {
		h.reports[r.Key] = r
	}
	for _, key := range d.Removed {
		delete(h.reports, key)
	}

	for ch := range h.subscribers {
		select {
		case ch <- d:
		default:
			// a client missing a delta would hold a wrong state
			h.dropLocked(ch)
		}
	}
}

// Reset forgets the latest reports
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reports = make(map[string]queue.Report)
}

// Close drops every client, later subscribers get a closed channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for ch := range h.subscribers {
		h.dropLocked(ch)
	}
}

func (h *Hub) dropLocked(ch chan Delta) {
	if _, ok := h.subscribers[ch]; !ok {
		return
	}

	delete(h.subscribers, ch)
	close(ch)
}

func (h *Hub) latestLocked() []queue.Report {
	reports := make([]queue.Report, 0, len(h.reports))
	for _, r := range h.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Key < reports[j].Key
	})

	return reports
}
