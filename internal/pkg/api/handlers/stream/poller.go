package stream

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/queue"
	"github.com/zeebo/xxh3"
)

// Poller periodically reads the queue reports and publishes to the hub the
// ones that changed or disappeared since the previous poll
type Poller struct {
	hub        *Hub
	source     func() []queue.Report
	interval   time.Duration
	prevHashes map[string]uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(hub *Hub, source func() []queue.Report, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}

	return &Poller{
		hub:        hub,
		source:     source,
		interval:   interval,
		prevHashes: make(map[string]uint64),
	}
}

// Start begins the polling loop, it is a no-op when already running
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	var ctx context.Context
	ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop ends the polling loop and waits for it to return
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done
	p.cancel = nil
	p.prevHashes = make(map[string]uint64)
	p.hub.Reset()
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.hub.Subscribers() == 0 {
				continue
			}
			p.poll()
		}
	}
}

// poll publishes the delta between the current queue reports and the
// previous ones
func (p *Poller) poll() {
	delta := Delta{Time: time.Now()}
	currentHashes := make(map[string]uint64)

	for _, report := range p.source() {
		data, err := json.Marshal(report)
		if err != nil {
			continue
		}

		hash := xxh3.Hash(data)
		currentHashes[report.Key] = hash
		if prev, ok := p.prevHashes[report.Key]; !ok || prev != hash {
			delta.Updated = append(delta.Updated, report)
		}
	}

	for key := range p.prevHashes {
		if _, ok := currentHashes[key]; !ok {
			delta.Removed = append(delta.Removed, key)
		}
	}
	sort.Strings(delta.Removed)

	p.prevHashes = currentHashes
	p.hub.Publish(delta)
}
