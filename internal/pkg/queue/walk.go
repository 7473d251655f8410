package queue

import (
	"github.com/internetarchive/frontier/pkg/models"
)

// Walk calls fn on every pending record in pop order. Each tier is rotated
// through once, so spilled records are visited without loading the whole
// queue in memory. The first error returned by fn stops the calls but the
// rotation still completes, leaving the order untouched.
func (q *WorkQueue) Walk(fn func(r *models.Record) error) error {
	var fnErr error

	_, err := q.rotate(func(r *models.Record) bool {
		if fnErr == nil {
			fnErr = fn(r)
		}
		return false
	})
	if err != nil {
		return err
	}

	return fnErr
}

// Filter removes every record for which drop returns true and returns how
// many were removed. The order of the remaining records is kept.
func (q *WorkQueue) Filter(drop func(r *models.Record) bool) (int64, error) {
	return q.rotate(drop)
}

func (q *WorkQueue) rotate(drop func(r *models.Record) bool) (removed int64, err error) {
	precedences := append([]int(nil), q.precedences...)

	for _, precedence := range precedences {
		t := q.tiers[precedence]

		for n := t.len(); n > 0; n-- {
			r, err := q.popTier(t)
			if err != nil {
				return removed, err
			}

			if drop(r) {
				removed++
				continue
			}

			if err := q.pushBack(t, r); err != nil {
				return removed, err
			}
		}

		q.dropTierIfEmpty(t)
	}

	q.count -= removed

	return removed, nil
}
