// Package politeness computes how long a queue must wait after a fetch
// before the frontier hands out its next URI.
package politeness

import (
	"sync"
	"time"

	"github.com/internetarchive/frontier/pkg/models"
)

const (
	// DefaultDelayFactor multiplies the last fetch duration
	DefaultDelayFactor = 5.0

	// DefaultMinDelay is the shortest wait between two fetches of a queue
	DefaultMinDelay = 3 * time.Second

	// DefaultMaxDelay is the longest wait computed from fetch durations
	DefaultMaxDelay = 30 * time.Second

	// DefaultRespectCrawlDelayUpTo caps the robots.txt crawl-delay honoured
	DefaultRespectCrawlDelayUpTo = 300 * time.Second

	// DefaultRetryDelay is the wait after a retryable failure
	DefaultRetryDelay = 900 * time.Second
)

// Options configures a Policy. Zero values take the defaults above, use a
// negative value for an explicit zero.
type Options struct {
	DelayFactor           float64
	MinDelay              time.Duration
	MaxDelay              time.Duration
	RespectCrawlDelayUpTo time.Duration
	RetryDelay            time.Duration
}

func (o *Options) defaults() {
	if o.DelayFactor == 0 {
		o.DelayFactor = DefaultDelayFactor
	}
	if o.MinDelay == 0 {
		o.MinDelay = DefaultMinDelay
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.RespectCrawlDelayUpTo == 0 {
		o.RespectCrawlDelayUpTo = DefaultRespectCrawlDelayUpTo
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}

	o.DelayFactor = max(o.DelayFactor, 0)
	o.MinDelay = max(o.MinDelay, 0)
	o.MaxDelay = max(o.MaxDelay, 0)
	o.RespectCrawlDelayUpTo = max(o.RespectCrawlDelayUpTo, 0)
	o.RetryDelay = max(o.RetryDelay, 0)
}

// Policy is the politeness oracle of the frontier. Fetch durations are
// reported by workers and crawl-delays by whatever evaluates robots.txt.
type Policy struct {
	opts Options

	mu          sync.RWMutex
	lastFetch   map[string]time.Duration
	crawlDelays map[string]time.Duration
}

// New returns a Policy
func New(opts Options) *Policy {
	opts.defaults()

	return &Policy{
		opts:        opts,
		lastFetch:   make(map[string]time.Duration),
		crawlDelays: make(map[string]time.Duration),
	}
}

// DelayFor returns how long queueKey must wait after a fetch ending in outcome
func (p *Policy) DelayFor(queueKey string, outcome models.Outcome) time.Duration {
	if outcome == models.OutcomeRetryable {
		return p.opts.RetryDelay
	}

	p.mu.RLock()
	fetch := p.lastFetch[queueKey]
	crawlDelay, hasCrawlDelay := p.crawlDelays[queueKey]
	p.mu.RUnlock()

	delay := time.Duration(float64(fetch) * p.opts.DelayFactor)
	if delay < p.opts.MinDelay {
		delay = p.opts.MinDelay
	}
	if delay > p.opts.MaxDelay {
		delay = p.opts.MaxDelay
	}

	if hasCrawlDelay && crawlDelay > delay {
		delay = min(crawlDelay, p.opts.RespectCrawlDelayUpTo)
	}

	return delay
}

// NoteFetch records how long the last fetch of queueKey took
func (p *Policy) NoteFetch(queueKey string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastFetch[queueKey] = duration
}

// SetCrawlDelay records the robots.txt crawl-delay of queueKey
func (p *Policy) SetCrawlDelay(queueKey string, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.crawlDelays[queueKey] = delay
}

// Forget drops what is known about queueKey
func (p *Policy) Forget(queueKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.lastFetch, queueKey)
	delete(p.crawlDelays, queueKey)
}

// Fixed is an oracle returning the same delay for every queue, except for
// retryable outcomes which get Retry.
type Fixed struct {
	Delay time.Duration
	Retry time.Duration
}

// DelayFor implements the frontier oracle
func (f Fixed) DelayFor(_ string, outcome models.Outcome) time.Duration {
	if outcome == models.OutcomeRetryable {
		return f.Retry
	}
	return f.Delay
}
