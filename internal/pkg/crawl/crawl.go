package crawl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/internetarchive/frontier/internal/pkg/utils"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"
)

// DefaultPollHint caps how long an idle worker sleeps before asking again
const DefaultPollHint = time.Second

// Result is what a Processor reports for one record
type Result struct {
	Outcome       models.Outcome
	FetchDuration time.Duration
	// CrawlDelay is the robots.txt Crawl-delay seen for the record's queue, if any
	CrawlDelay time.Duration
	Discovered []*models.Record
}

// Processor fetches a record. Discovered records are scheduled by the pool.
type Processor interface {
	Process(ctx context.Context, r *models.Record) Result
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, r *models.Record) Result

// Process calls fn(ctx, r)
func (fn ProcessorFunc) Process(ctx context.Context, r *models.Record) Result {
	return fn(ctx, r)
}

// Frontier is the part of the scheduler the pool drives
type Frontier interface {
	Next(hint time.Duration) (frontier.Poll, error)
	Schedule(r *models.Record) (frontier.Result, error)
	Finished(r *models.Record, outcome models.Outcome) error
	Counts() frontier.Counts
}

// Politeness is told about fetches so it can compute the next delays
type Politeness interface {
	NoteFetch(queueKey string, duration time.Duration)
	SetCrawlDelay(queueKey string, delay time.Duration)
}

// Options configures a Pool
type Options struct {
	Workers int
	// MaxHops drops discovered records further than this from their seed,
	// 0 means no limit
	MaxHops int
	// PollHint caps the sleep of a worker that got no record
	PollHint time.Duration
	// KeepAlive keeps workers polling when the frontier is empty instead of
	// returning, until the context is done
	KeepAlive bool
}

// Pool runs workers that take records from a frontier and hand them to a
// Processor
type Pool struct {
	opts       Options
	frontier   Frontier
	processor  Processor
	politeness Politeness
	stats      *stats.Stats
	log        logrus.FieldLogger

	active   atomic.Int64
	Finished *utils.TAtomBool

	errOnce sync.Once
	err     error
}

// NewPool returns a Pool. politeness, st and logger may be nil.
func NewPool(opts Options, f Frontier, p Processor, politeness Politeness, st *stats.Stats, logger logrus.FieldLogger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollHint <= 0 {
		opts.PollHint = DefaultPollHint
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pool{
		opts:       opts,
		frontier:   f,
		processor:  p,
		politeness: politeness,
		stats:      st,
		log:        logger,
		Finished:   new(utils.TAtomBool),
	}
}

// ActiveWorkers returns the number of workers processing a record
func (p *Pool) ActiveWorkers() int64 {
	return p.active.Load()
}

// Run starts the workers and blocks until they all returned: when the
// frontier is drained, when ctx is done or on the first storage error, which
// is returned.
func (p *Pool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	swg := sizedwaitgroup.New(p.opts.Workers)
	for i := 0; i < p.opts.Workers; i++ {
		swg.Add()
		go func(id int) {
			defer swg.Done()

			if err := p.work(ctx, id); err != nil {
				p.fail(err)
				cancel()
			}
		}(i)
	}

	swg.Wait()
	p.Finished.Set(true)

	return p.err
}

func (p *Pool) fail(err error) {
	p.errOnce.Do(func() {
		p.err = err
	})
}

func (p *Pool) work(ctx context.Context, id int) error {
	logger := p.log.WithField("worker", id)

	for {
		if ctx.Err() != nil {
			return nil
		}

		poll, err := p.frontier.Next(p.opts.PollHint)
		if err != nil {
			if errors.Is(err, frontier.ErrClosed) {
				return nil
			}
			return err
		}

		switch poll.Status {
		case frontier.PollReady:
			if err := p.process(ctx, logger, poll.Record); err != nil {
				return err
			}
		case frontier.PollEmpty:
			// records of retired queues are never handed out, so only
			// in-flight ones can bring more work
			if !p.opts.KeepAlive && p.frontier.Counts().InFlight == 0 {
				logger.Debug("frontier drained, worker stopping")
				return nil
			}
			sleep(ctx, p.opts.PollHint)
		default:
			sleep(ctx, poll.RetryAfter)
		}
	}
}

func (p *Pool) process(ctx context.Context, logger logrus.FieldLogger, r *models.Record) error {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	res := p.processor.Process(ctx, r)
	duration := res.FetchDuration
	if duration <= 0 {
		duration = time.Since(start)
	}

	if p.politeness != nil {
		p.politeness.NoteFetch(r.QueueKey, duration)
		if res.CrawlDelay > 0 {
			p.politeness.SetCrawlDelay(r.QueueKey, res.CrawlDelay)
		}
	}
	p.stats.ObserveFetch(duration)

	for _, d := range res.Discovered {
		if p.opts.MaxHops > 0 && d.Hops() > p.opts.MaxHops {
			continue
		}

		if _, err := p.frontier.Schedule(d); err != nil {
			if errors.Is(err, frontier.ErrStorage) {
				return err
			}
			logger.WithFields(logrus.Fields{
				"uri":   d.URL,
				"error": err,
			}).Debug("unable to schedule discovered URI")
		}
	}

	if err := p.frontier.Finished(r, res.Outcome); err != nil {
		if errors.Is(err, frontier.ErrStorage) {
			return err
		}
		logger.WithFields(logrus.Fields{
			"uri":   r.URL,
			"error": err,
		}).Warn("unable to finish URI")
	}

	return nil
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
