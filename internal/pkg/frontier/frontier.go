// Package frontier decides which URI a worker fetches next. It routes
// scheduled records into per-key queues, hands out at most one record per
// queue at a time and paces each queue with the delay given by a politeness
// oracle.
package frontier

import (
	"fmt"
	"path"
	"regexp"
	"sync"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/assignment"
	"github.com/internetarchive/frontier/internal/pkg/control"
	"github.com/internetarchive/frontier/internal/pkg/politeness"
	"github.com/internetarchive/frontier/internal/pkg/precedence"
	"github.com/internetarchive/frontier/internal/pkg/queue"
	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/internetarchive/frontier/internal/pkg/utils"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxRetries is the number of times a retryable failure is retried
	DefaultMaxRetries = 30

	// DefaultRecheckInterval is the RetryAfter given when pending work sits
	// behind busy queues only
	DefaultRecheckInterval = 500 * time.Millisecond
)

// AlreadySeen is the durable set of fingerprints the frontier already
// accepted. ContainsOrInsert must be atomic for a given fingerprint.
type AlreadySeen interface {
	ContainsOrInsert(fp uint64) (bool, error)
	Forget(fp uint64) error
}

// Oracle gives the politeness delay a queue must wait after a fetch
type Oracle interface {
	DelayFor(queueKey string, outcome models.Outcome) time.Duration
}

// Journal receives the frontier events so they can be replayed after a crash
type Journal interface {
	Added(r *models.Record)
	Emitted(r *models.Record)
	Rescheduled(r *models.Record)
	Finished(r *models.Record, outcome models.Outcome)
}

// Options configures a Frontier
type Options struct {
	// PlainIdentity uses the normalized URL as identity instead of its SURT form
	PlainIdentity bool
	// MaxRetries caps the retries of a record, 0 means DefaultMaxRetries and
	// a negative value disables retries
	MaxRetries int
	// RetryAtBack re-enqueues retries at the back of their tier instead of the front
	RetryAtBack bool
	// RecheckInterval is the RetryAfter of Next when only busy queues hold work
	RecheckInterval time.Duration
	// QueueBudget is the total budget of new queues, 0 or less is unlimited
	QueueBudget int64
	// MemoryLimit caps the records held in memory across queues, 0 is unlimited
	MemoryLimit int64
	// SpillDir is where records over MemoryLimit are written. Without it
	// every record stays in memory.
	SpillDir string
	// Exclusions rejects the URLs matching any of these
	Exclusions []*regexp.Regexp
}

// Deps are the collaborators of a Frontier. Only Seen is required.
type Deps struct {
	Seen       AlreadySeen
	Assignment assignment.Policy
	Precedence precedence.Policy
	Oracle     Oracle
	Journal    Journal
	Stats      *stats.Stats
	Gate       *control.Gate
	Logger     logrus.FieldLogger
}

// Frontier is the crawl scheduler. It is safe for concurrent use.
type Frontier struct {
	opts Options

	seen    AlreadySeen
	assign  assignment.Policy
	prec    precedence.Policy
	oracle  Oracle
	journal Journal
	stats   *stats.Stats
	gate    *control.Gate
	log     logrus.FieldLogger

	spill  *queue.Spill
	budget *queue.MemoryBudget

	// mu guards everything below, and is taken before any queue mutex
	mu      sync.Mutex
	queues  map[string]*queue.WorkQueue
	ready   *wakeHeap
	snoozed *wakeHeap
	// idle holds the empty queues kept until their wake time passes
	idle     *wakeHeap
	inFlight map[uint64]inFlight
	pending  int64
	// retiredPending is the part of pending held by retired queues
	retiredPending int64

	closed *utils.TAtomBool

	// nowFunc is the function used to get the current time.
	// it defaults to time.Now, but can be overridden for testing
	nowFunc func() time.Time
}

// inFlight is a record handed out by Next, keyed by fingerprint
type inFlight struct {
	record *models.Record
	queue  *queue.WorkQueue
}

// New returns a Frontier
func New(opts Options, deps Deps) (*Frontier, error) {
	if deps.Seen == nil {
		return nil, ErrNoSeencheck
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RecheckInterval <= 0 {
		opts.RecheckInterval = DefaultRecheckInterval
	}

	f := &Frontier{
		opts:     opts,
		seen:     deps.Seen,
		assign:   deps.Assignment,
		prec:     deps.Precedence,
		oracle:   deps.Oracle,
		journal:  deps.Journal,
		stats:    deps.Stats,
		gate:     deps.Gate,
		log:      deps.Logger,
		budget:   queue.NewMemoryBudget(opts.MemoryLimit),
		queues:   make(map[string]*queue.WorkQueue),
		ready:    newWakeHeap(),
		snoozed:  newWakeHeap(),
		idle:     newWakeHeap(),
		inFlight: make(map[uint64]inFlight),
		closed:   new(utils.TAtomBool),
		nowFunc:  time.Now,
	}

	if f.assign == nil {
		f.assign = &assignment.HostPolicy{}
	}
	if f.prec == nil {
		f.prec = &precedence.Base{Value: precedence.DefaultBase}
	}
	if f.oracle == nil {
		f.oracle = politeness.New(politeness.Options{})
	}
	if f.gate == nil {
		f.gate = control.NewGate()
	}
	if f.log == nil {
		f.log = logrus.StandardLogger()
	}

	if opts.SpillDir != "" {
		spill, err := queue.OpenSpill(path.Clean(opts.SpillDir))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		f.spill = spill
	}

	return f, nil
}

// Gate returns the pause gate checked by Next
func (f *Frontier) Gate() *control.Gate {
	return f.gate
}

// Pause stops Next from handing out records. Records already handed out
// stay in progress until they are finished.
func (f *Frontier) Pause() {
	if f.gate.Pause() {
		f.log.Info("Frontier paused")
	}
	f.stats.SetPaused(true)
}

// Resume lets Next hand out records again
func (f *Frontier) Resume() {
	if f.gate.Resume() {
		f.log.Info("Frontier resumed")
	}
	f.stats.SetPaused(false)
}

// IsPaused reports whether the frontier is paused
func (f *Frontier) IsPaused() bool {
	return f.gate.IsPaused()
}

// IsEmpty reports whether no record is pending in any queue and none is in
// progress. Records of retired queues count as pending.
func (f *Frontier) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pending == 0 && len(f.inFlight) == 0
}

// Close releases the spill storage. The already-seen store belongs to the
// caller and is left open.
func (f *Frontier) Close() error {
	if f.closed.Swap(true) {
		return ErrClosed
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.spill != nil {
		if err := f.spill.Close(); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	return nil
}

func (f *Frontier) now() time.Time {
	return f.nowFunc()
}

// newQueueLocked creates the queue of key and adds it to the directory
func (f *Frontier) newQueueLocked(key string) *queue.WorkQueue {
	q := queue.New(key, f.spill, f.budget)
	if f.opts.QueueBudget > 0 {
		q.SetTotalBudget(f.opts.QueueBudget)
	}
	f.queues[key] = q

	return q
}

// placeLocked puts q in the heap matching its state: ready when it can be
// polled now, snoozed when it has a future wake time, nowhere when it is
// busy or retired. Empty queues wait in idle until their wake time, then
// are removed from the directory unless they have a budget to remember.
//
// Both f.mu and q must be held.
func (f *Frontier) placeLocked(q *queue.WorkQueue, now time.Time) {
	key := q.Key()

	f.ready.remove(key)
	f.snoozed.remove(key)
	f.idle.remove(key)

	if q.Busy() || q.Retired() {
		return
	}

	wake := q.WakeTime()

	if q.IsEmpty() {
		if wake.After(now) {
			f.idle.add(key, wake)
			return
		}
		if q.TotalBudget() < 0 {
			f.forgetQueueLocked(key)
		}
		return
	}

	if wake.After(now) {
		f.snoozed.add(key, wake)
		return
	}

	f.ready.add(key, wake)
}

// wakeLocked moves the snoozed and idle queues whose wake time passed
func (f *Frontier) wakeLocked(now time.Time) {
	for _, h := range []*wakeHeap{f.snoozed, f.idle} {
		for e := h.peek(); e != nil && !e.wake.After(now); e = h.peek() {
			h.pop()

			q, ok := f.queues[e.key]
			if !ok {
				continue
			}

			q.Lock()
			f.placeLocked(q, now)
			q.Unlock()
		}
	}
}

// forgetQueueLocked removes an empty queue from the directory
func (f *Frontier) forgetQueueLocked(key string) {
	delete(f.queues, key)
	if p, ok := f.oracle.(forgetter); ok {
		p.Forget(key)
	}
}

type forgetter interface {
	Forget(queueKey string)
}

// setRetiredLocked changes the retired flag of q and keeps retiredPending
// in step. q must be held.
func (f *Frontier) setRetiredLocked(q *queue.WorkQueue, retired bool) {
	if q.Retired() == retired {
		return
	}

	q.SetRetired(retired)
	if retired {
		f.retiredPending += q.Len()
	} else {
		f.retiredPending -= q.Len()
	}
}

func (f *Frontier) updateGaugesLocked() {
	f.stats.SetPending(f.pending)
	f.stats.SetInFlight(int64(len(f.inFlight)))
	f.stats.SetQueues(int64(len(f.queues)))
}
