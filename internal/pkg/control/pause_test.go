package control

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBasicFunctionality(t *testing.T) {
	g := NewGate()

	if g.IsPaused() {
		t.Error("Expected IsPaused() to be false initially")
	}

	if !g.Pause() {
		t.Error("Expected Pause() to report a state change")
	}
	if !g.IsPaused() {
		t.Error("Expected IsPaused() to be true after Pause()")
	}
	if g.Pause() {
		t.Error("Expected second Pause() to be a no-op")
	}

	if !g.Resume() {
		t.Error("Expected Resume() to report a state change")
	}
	if g.IsPaused() {
		t.Error("Expected IsPaused() to be false after Resume()")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	g := NewGate()

	ch := g.Subscribe()

	select {
	case event := <-ch:
		if event != ResumeEvent {
			t.Errorf("Expected initial event to be ResumeEvent, got %v", event)
		}
	default:
		t.Error("Expected to receive initial state event")
	}

	g.Pause()
	select {
	case event := <-ch:
		if event != PauseEvent {
			t.Errorf("Expected PauseEvent, got %v", event)
		}
	default:
		t.Error("Expected to receive PauseEvent")
	}

	g.Resume()
	select {
	case event := <-ch:
		if event != ResumeEvent {
			t.Errorf("Expected ResumeEvent, got %v", event)
		}
	default:
		t.Error("Expected to receive ResumeEvent")
	}

	g.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected channel to be closed after Unsubscribe")
		}
	default:
		t.Error("Expected channel to be closed after Unsubscribe")
	}
}

func TestUnreadEventIsReplaced(t *testing.T) {
	g := NewGate()

	ch := g.Subscribe()
	defer g.Unsubscribe(ch)

	// The initial ResumeEvent is never read
	g.Pause()

	if event := <-ch; event != PauseEvent {
		t.Errorf("Expected the latest event to be PauseEvent, got %v", event)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	g := NewGate()

	const numSubscribers = 10
	subs := make([]<-chan Event, numSubscribers)

	for i := 0; i < numSubscribers; i++ {
		ch := g.Subscribe()
		subs[i] = ch
		defer g.Unsubscribe(ch)

		<-ch
	}

	g.Pause()

	for i, ch := range subs {
		select {
		case event := <-ch:
			if event != PauseEvent {
				t.Errorf("Subscriber %d: Expected PauseEvent, got %v", i, event)
			}
		default:
			t.Errorf("Subscriber %d: Expected to receive PauseEvent", i)
		}
	}
}

func TestConcurrentPauseResume(t *testing.T) {
	g := NewGate()

	const numGoroutines = 50
	const numIterations = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()

			ch := g.Subscribe()
			defer g.Unsubscribe(ch)

			for j := 0; j < numIterations; j++ {
				if j%2 == 0 {
					g.Pause()
				} else {
					g.Resume()
				}
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out; possible deadlock or issue with concurrent Pause/Resume")
	}
}

func TestWaitIfPaused(t *testing.T) {
	g := NewGate()
	g.Pause()

	done := make(chan error)
	go func() {
		done <- g.WaitIfPaused(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)
	g.Resume()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("WaitIfPaused() did not return after Resume()")
	}
}

func TestWaitIfPausedContext(t *testing.T) {
	g := NewGate()
	g.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := g.WaitIfPaused(ctx); err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestWaitIfNotPaused(t *testing.T) {
	if err := NewGate().WaitIfPaused(context.Background()); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}
