package frontier

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/internetarchive/frontier/internal/pkg/stats"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
)

// DeleteURIs removes the pending records whose URL matches uriPattern from
// the queues whose key matches queuePattern. An empty queuePattern matches
// every queue. It returns the number of records removed.
func (f *Frontier) DeleteURIs(queuePattern, uriPattern string) (int64, error) {
	uriRe, err := regexp.Compile(uriPattern)
	if err != nil {
		return 0, fmt.Errorf("invalid URI pattern: %w", err)
	}

	var queueRe *regexp.Regexp
	if queuePattern != "" {
		queueRe, err = regexp.Compile(queuePattern)
		if err != nil {
			return 0, fmt.Errorf("invalid queue pattern: %w", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.queues))
	for key := range f.queues {
		if queueRe == nil || queueRe.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	now := f.now()

	var total int64
	for _, key := range keys {
		q := f.queues[key]

		q.Lock()
		removed, err := q.Filter(func(r *models.Record) bool {
			return uriRe.MatchString(r.URL)
		})
		total += removed
		f.pending -= removed
		if q.Retired() {
			f.retiredPending -= removed
		}
		f.placeLocked(q, now)
		q.Unlock()

		if err != nil {
			f.updateGaugesLocked()
			f.stats.Add(stats.Deleted, total)
			return total, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	f.updateGaugesLocked()
	f.stats.Add(stats.Deleted, total)

	f.log.WithFields(logrus.Fields{
		"queues":  queuePattern,
		"uris":    uriPattern,
		"deleted": total,
	}).Info("Deleted URIs")

	return total, nil
}

// SetQueueBudget changes the total budget of the queue of key, -1 meaning
// unlimited. A retired queue that is no longer over budget is put back in
// rotation.
func (f *Frontier) SetQueueBudget(key string, budget int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.queues[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, key)
	}

	q.Lock()
	defer q.Unlock()

	if budget < 0 {
		budget = -1
	}
	q.SetTotalBudget(budget)

	if q.Retired() && !q.OverBudget() {
		f.setRetiredLocked(q, false)
	}
	f.placeLocked(q, f.now())
	f.updateGaugesLocked()

	return nil
}

// Unretire puts a retired queue back in rotation and lifts its budget
func (f *Frontier) Unretire(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.queues[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, key)
	}

	q.Lock()
	defer q.Unlock()

	f.setRetiredLocked(q, false)
	if q.OverBudget() {
		q.SetTotalBudget(-1)
	}
	f.placeLocked(q, f.now())
	f.updateGaugesLocked()

	f.log.WithFields(logrus.Fields{
		"queue": key,
	}).Info("Queue unretired")

	return nil
}
