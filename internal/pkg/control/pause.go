package control

import (
	"context"
	"sync"
	"sync/atomic"
)

// subscriber represents a goroutine subscribed to pause/resume events.
type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// send delivers event, replacing a pending one the subscriber did not read.
func (s *subscriber) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- event:
		return
	default:
	}

	select {
	case <-s.ch:
	default:
	}

	select {
	case s.ch <- event:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Gate manages the paused state and subscribers. The zero value is an open
// gate ready to use.
type Gate struct {
	paused      uint32
	subscribers sync.Map // Map of *subscriber to struct{}
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// IsPaused returns true if the gate is currently closed.
func (g *Gate) IsPaused() bool {
	return atomic.LoadUint32(&g.paused) == 1
}

// Pause closes the gate and notifies all subscribers. It returns false if
// the gate was already closed.
func (g *Gate) Pause() bool {
	if atomic.CompareAndSwapUint32(&g.paused, 0, 1) {
		g.notifySubscribers(PauseEvent)
		return true
	}
	return false
}

// Resume opens the gate and notifies all subscribers. It returns false if
// the gate was already open.
func (g *Gate) Resume() bool {
	if atomic.CompareAndSwapUint32(&g.paused, 1, 0) {
		g.notifySubscribers(ResumeEvent)
		return true
	}
	return false
}

// Subscribe returns a channel to receive pause and resume events.
func (g *Gate) Subscribe() <-chan Event {
	sub := &subscriber{
		ch: make(chan Event, 1),
	}

	g.subscribers.Store(sub, struct{}{})

	// Send the current state immediately to the subscriber.
	if g.IsPaused() {
		sub.ch <- PauseEvent
	} else {
		sub.ch <- ResumeEvent
	}

	return sub.ch
}

// Unsubscribe removes a subscriber from the list.
func (g *Gate) Unsubscribe(ch <-chan Event) {
	g.subscribers.Range(func(key, _ interface{}) bool {
		sub := key.(*subscriber)
		if sub.ch == ch {
			g.subscribers.Delete(sub)
			sub.close()
			return false
		}
		return true
	})
}

// notifySubscribers sends an event to all subscribers.
func (g *Gate) notifySubscribers(event Event) {
	g.subscribers.Range(func(key, _ interface{}) bool {
		key.(*subscriber).send(event)
		return true
	})
}

// WaitIfPaused blocks the caller while the gate is closed, or until ctx is
// done. It returns ctx.Err() in the latter case.
func (g *Gate) WaitIfPaused(ctx context.Context) error {
	if !g.IsPaused() {
		return nil
	}

	ch := g.Subscribe()
	defer g.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-ch:
			if event == ResumeEvent || !g.IsPaused() {
				return nil
			}
		}
	}
}
