package frontier

import (
	"errors"
	"fmt"

	"github.com/internetarchive/frontier/internal/pkg/seencheck"
	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
)

// Result is the answer of Schedule
type Result int

const (
	// Accepted means the record was enqueued
	Accepted Result = iota
	// Duplicate means the record identity was already seen
	Duplicate
	// Rejected means the record was refused: no URL, not canonicalizable,
	// excluded, frontier closed, or a storage failure
	Rejected
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	}
	return ""
}

// Schedule routes r to its queue. The seencheck is bypassed when
// r.ForceFetch is set. A storage failure returns Rejected and an error
// wrapping ErrStorage, and the record identity is not marked as seen.
func (f *Frontier) Schedule(r *models.Record) (Result, error) {
	if f.closed.Get() {
		f.stats.Incr(stats.Rejected)
		return Rejected, ErrClosed
	}

	if r == nil || r.URL == "" {
		f.stats.Incr(stats.Rejected)
		return Rejected, nil
	}

	if err := r.Canonicalize(!f.opts.PlainIdentity); err != nil {
		f.log.WithFields(logrus.Fields{
			"uri":   r.URL,
			"error": err,
		}).Debug("Rejected uncanonicalizable URI")
		f.stats.Incr(stats.Rejected)
		return Rejected, nil
	}

	for _, exclusion := range f.opts.Exclusions {
		if exclusion.MatchString(r.URL) {
			f.log.WithFields(logrus.Fields{
				"uri":       r.URL,
				"exclusion": exclusion.String(),
			}).Debug("Rejected excluded URI")
			f.stats.Incr(stats.Rejected)
			return Rejected, nil
		}
	}

	r.Fingerprint = seencheck.Fingerprint(r.Identity)

	if !r.ForceFetch {
		seen, err := f.seen.ContainsOrInsert(r.Fingerprint)
		if err != nil {
			f.log.WithFields(logrus.Fields{
				"uri":   r.URL,
				"error": err,
			}).Error("Seencheck failed")
			f.stats.Incr(stats.Rejected)
			return Rejected, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		if seen {
			f.log.WithFields(logrus.Fields{
				"uri": r.URL,
			}).Debug("Duplicate URI")
			f.stats.Incr(stats.Duplicates)
			return Duplicate, nil
		}
	}

	r.QueueKey = f.assign.ClassKey(r)
	f.prec.Assign(r)
	r.State = models.StatePending
	r.ScheduleCount++

	now := f.now()
	if r.DiscoveredAt.IsZero() {
		r.DiscoveredAt = now
	}

	if err := f.enqueue(r); err != nil {
		f.log.WithFields(logrus.Fields{
			"uri":   r.URL,
			"queue": r.QueueKey,
			"error": err,
		}).Error("Unable to enqueue URI")

		if !r.ForceFetch {
			if forgetErr := f.seen.Forget(r.Fingerprint); forgetErr != nil {
				f.log.WithFields(logrus.Fields{
					"uri":   r.URL,
					"error": forgetErr,
				}).Error("Unable to unmark URI from seencheck")
			}
		}

		f.stats.Incr(stats.Rejected)
		if errors.Is(err, ErrClosed) {
			return Rejected, err
		}
		return Rejected, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	f.stats.Incr(stats.Discovered)
	if f.journal != nil {
		f.journal.Added(r)
	}

	f.log.WithFields(logrus.Fields{
		"uri":        r.URL,
		"queue":      r.QueueKey,
		"precedence": r.Precedence,
	}).Debug("URI scheduled")

	return Accepted, nil
}

func (f *Frontier) enqueue(r *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed.Get() {
		return ErrClosed
	}

	q, ok := f.queues[r.QueueKey]
	if !ok {
		q = f.newQueueLocked(r.QueueKey)
	}

	q.Lock()
	defer q.Unlock()

	if err := q.Enqueue(r); err != nil {
		if !ok {
			delete(f.queues, r.QueueKey)
		}
		return err
	}

	f.pending++
	if q.Retired() {
		f.retiredPending++
	}
	f.placeLocked(q, f.now())
	f.updateGaugesLocked()

	return nil
}
