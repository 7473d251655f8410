package frontier

import (
	"fmt"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/queue"
	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
)

// PollStatus qualifies the answer of Next
type PollStatus int

const (
	// PollReady means Record holds the record to fetch
	PollReady PollStatus = iota
	// PollEmpty means nothing is pending, only in-progress records may
	// bring new work
	PollEmpty
	// PollNotYetReady means records are pending but their queues are busy or
	// waiting for politeness, call again after RetryAfter
	PollNotYetReady
	// PollPaused means the frontier is paused, call again after RetryAfter
	PollPaused
)

func (s PollStatus) String() string {
	switch s {
	case PollReady:
		return "ready"
	case PollEmpty:
		return "empty"
	case PollNotYetReady:
		return "not-yet-ready"
	case PollPaused:
		return "paused"
	}
	return ""
}

// Poll is the answer of Next
type Poll struct {
	Status     PollStatus
	Record     *models.Record
	RetryAfter time.Duration
}

// Next hands out the head of the first ready queue: the one with the oldest
// wake time, ties broken by key. The queue is busy until the record is
// finished. Next never blocks, hint caps the RetryAfter it returns when it
// is positive.
func (f *Frontier) Next(hint time.Duration) (Poll, error) {
	if f.closed.Get() {
		return Poll{Status: PollEmpty}, ErrClosed
	}

	if f.gate.IsPaused() {
		return Poll{Status: PollPaused, RetryAfter: f.recheck(hint)}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.wakeLocked(now)

	for e := f.ready.pop(); e != nil; e = f.ready.pop() {
		q, ok := f.queues[e.key]
		if !ok {
			continue
		}

		q.Lock()

		if q.Busy() || q.Retired() || q.IsEmpty() {
			q.Unlock()
			continue
		}

		if q.OverBudget() {
			f.setRetiredLocked(q, true)
			expenditure := q.Expenditure()
			q.Unlock()
			f.log.WithFields(logrus.Fields{
				"queue":       e.key,
				"expenditure": expenditure,
			}).Info("Queue retired over budget")
			continue
		}

		r, err := q.Pop()
		if err != nil {
			f.placeLocked(q, now)
			q.Unlock()
			return Poll{}, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		q.SetBusy(true)
		q.Unlock()

		r.State = models.StateInProgress
		f.inFlight[r.Fingerprint] = inFlight{record: r, queue: q}
		f.pending--
		f.updateGaugesLocked()
		f.stats.Incr(stats.Emitted)

		if f.journal != nil {
			f.journal.Emitted(r)
		}

		return Poll{Status: PollReady, Record: r}, nil
	}

	if f.pending-f.retiredPending == 0 {
		return Poll{Status: PollEmpty}, nil
	}

	return Poll{Status: PollNotYetReady, RetryAfter: f.retryAfterLocked(now, hint)}, nil
}

func (f *Frontier) recheck(hint time.Duration) time.Duration {
	if hint > 0 && hint < f.opts.RecheckInterval {
		return hint
	}
	return f.opts.RecheckInterval
}

// retryAfterLocked is the wait before pending work may be ready. The
// snoozed heap only holds queues with records, busy queues are rechecked
// every RecheckInterval.
func (f *Frontier) retryAfterLocked(now time.Time, hint time.Duration) time.Duration {
	e := f.snoozed.peek()
	if e == nil {
		return f.recheck(hint)
	}

	retryAfter := e.wake.Sub(now)
	if len(f.inFlight) > 0 && retryAfter > f.opts.RecheckInterval {
		retryAfter = f.opts.RecheckInterval
	}
	if hint > 0 && retryAfter > hint {
		retryAfter = hint
	}

	return retryAfter
}

// Finished reports the outcome of a record handed out by Next. The queue
// waits for the delay given by the politeness oracle.
func (f *Frontier) Finished(r *models.Record, outcome models.Outcome) error {
	var delay time.Duration
	if r != nil {
		delay = f.oracle.DelayFor(r.QueueKey, outcome)
	}

	return f.FinishedAfter(r, outcome, delay)
}

// FinishedAfter reports the outcome of a record handed out by Next, its
// queue waits for delay before the next fetch. A record that is not in
// progress is ignored with a warning.
//
// Retryable outcomes put the record back in its queue, ahead of the records
// of the same precedence, until it failed more than MaxRetries times.
func (f *Frontier) FinishedAfter(r *models.Record, outcome models.Outcome, delay time.Duration) error {
	if r == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.inFlight[r.Fingerprint]
	if !ok {
		f.log.WithFields(logrus.Fields{
			"uri":     r.URL,
			"outcome": outcome.String(),
		}).Warn("Finished called for a URI that is not in progress")
		return nil
	}
	delete(f.inFlight, r.Fingerprint)

	// r may be a copy of the record handed out, the outcome is applied to
	// the one the frontier holds and mirrored back
	caller, q := r, entry.queue
	r = entry.record
	if caller != r {
		defer func() {
			caller.State = r.State
			caller.FailureCount = r.FailureCount
			caller.ScheduleCount = r.ScheduleCount
		}()
	}

	q.Lock()
	defer q.Unlock()

	var err error

	switch outcome {
	case models.OutcomeSuccess:
		r.State = models.StateCompleted
		q.Expend(1)
		f.stats.Incr(stats.Succeeded)
		f.journalFinished(r, outcome)
	case models.OutcomeDisregarded:
		r.State = models.StateCompleted
		f.stats.Incr(stats.Disregarded)
		f.journalFinished(r, outcome)
	case models.OutcomeRetryable:
		r.FailureCount++
		if r.FailureCount <= f.opts.MaxRetries {
			err = f.retryLocked(q, r)
			break
		}
		f.failLocked(q, r)
	default:
		f.failLocked(q, r)
	}

	now := f.now()
	q.SetWakeTime(now.Add(delay))
	q.SetBusy(false)

	if q.OverBudget() && !q.Retired() {
		f.setRetiredLocked(q, true)
		f.log.WithFields(logrus.Fields{
			"queue":       q.Key(),
			"expenditure": q.Expenditure(),
		}).Info("Queue retired over budget")
	}

	f.placeLocked(q, now)
	f.updateGaugesLocked()

	return err
}

func (f *Frontier) retryLocked(q *queue.WorkQueue, r *models.Record) error {
	r.State = models.StateFailedRetryable

	var err error
	if f.opts.RetryAtBack {
		err = q.Enqueue(r)
	} else {
		err = q.EnqueueFront(r)
	}

	if err != nil {
		f.log.WithFields(logrus.Fields{
			"uri":   r.URL,
			"queue": r.QueueKey,
			"error": err,
		}).Error("Unable to re-enqueue URI for retry")
		f.failLocked(q, r)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	r.State = models.StatePending
	r.ScheduleCount++
	f.pending++
	if q.Retired() {
		f.retiredPending++
	}
	f.stats.Incr(stats.Retried)

	if f.journal != nil {
		f.journal.Rescheduled(r)
	}

	return nil
}

func (f *Frontier) failLocked(q *queue.WorkQueue, r *models.Record) {
	r.State = models.StateFailedTerminal
	q.NoteError()
	q.Expend(1)
	f.stats.Incr(stats.Failed)
	f.journalFinished(r, models.OutcomeTerminal)
}

func (f *Frontier) journalFinished(r *models.Record, outcome models.Outcome) {
	if f.journal != nil {
		f.journal.Finished(r, outcome)
	}
}
