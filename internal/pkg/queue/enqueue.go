package queue

import (
	"fmt"

	"github.com/internetarchive/frontier/pkg/models"
)

// Enqueue adds r at the end of its precedence tier. The record is spilled to
// disk when the memory budget is exhausted or when older records of the same
// tier are already on disk.
func (q *WorkQueue) Enqueue(r *models.Record) error {
	if r == nil {
		return ErrNilRecord
	}

	q.ordinal++
	r.Ordinal = q.ordinal

	t := q.tier(r.Precedence)
	if err := q.pushBack(t, r); err != nil {
		q.dropTierIfEmpty(t)
		return err
	}

	q.count++
	q.enqueued++

	return nil
}

// EnqueueFront puts r at the head of its precedence tier, ahead of every
// record of equal precedence. It is used for retries and always keeps the
// record in memory.
func (q *WorkQueue) EnqueueFront(r *models.Record) error {
	if r == nil {
		return ErrNilRecord
	}

	t := q.tier(r.Precedence)
	q.budget.acquire()

	t.mem = append(t.mem, nil)
	copy(t.mem[1:], t.mem)
	t.mem[0] = r

	q.count++
	q.enqueued++

	return nil
}

func (q *WorkQueue) pushBack(t *tier, r *models.Record) error {
	if q.spill == nil || (t.onDisk == 0 && q.budget.tryAcquire()) {
		if q.spill == nil {
			q.budget.acquire()
		}
		t.mem = append(t.mem, r)
		return nil
	}

	if err := q.spill.push(spillPrefix(q.key, t.precedence), r); err != nil {
		return fmt.Errorf("queue %s: %w", q.key, err)
	}
	t.onDisk++

	return nil
}
