package queue

import (
	"fmt"

	"github.com/internetarchive/frontier/pkg/models"
)

// Peek returns the head of the queue without removing it
func (q *WorkQueue) Peek() (*models.Record, error) {
	t := q.head()
	if t == nil {
		return nil, ErrQueueEmpty
	}

	if len(t.mem) == 0 {
		// Bring the oldest spilled record back in memory, it stays the head.
		r, err := q.spill.pop(spillPrefix(q.key, t.precedence))
		if err != nil {
			return nil, fmt.Errorf("queue %s: %w", q.key, err)
		}
		t.onDisk--
		q.budget.acquire()
		t.mem = append(t.mem, r)
	}

	return t.mem[0], nil
}

// Pop removes and returns the head of the queue: the lowest precedence, then
// the earliest enqueued.
func (q *WorkQueue) Pop() (*models.Record, error) {
	t := q.head()
	if t == nil {
		return nil, ErrQueueEmpty
	}

	r, err := q.popTier(t)
	if err != nil {
		return nil, err
	}

	q.dropTierIfEmpty(t)
	q.count--
	q.emitted++

	return r, nil
}

func (q *WorkQueue) popTier(t *tier) (*models.Record, error) {
	if len(t.mem) > 0 {
		r := t.mem[0]
		t.mem[0] = nil
		t.mem = t.mem[1:]
		q.budget.release(1)
		return r, nil
	}

	r, err := q.spill.pop(spillPrefix(q.key, t.precedence))
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", q.key, err)
	}
	t.onDisk--

	return r, nil
}
