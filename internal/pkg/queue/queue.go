// Package queue implements the per-key work queues of the frontier: records
// sharing one queue key, ordered by precedence then insertion, with the
// overflow spilled to disk.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/internetarchive/frontier/pkg/models"
)

// WorkQueue holds the pending records of one queue key.
//
// A WorkQueue is not safe for concurrent use by itself: callers hold its
// embedded mutex around every call.
type WorkQueue struct {
	sync.Mutex

	key         string
	tiers       map[int]*tier
	precedences []int
	count       int64
	ordinal     uint64

	wakeTime time.Time
	busy     bool
	retired  bool

	totalBudget int64
	expenditure int64
	errors      int64
	enqueued    int64
	emitted     int64

	spill  *Spill
	budget *MemoryBudget
}

// tier is one precedence level. Records in mem were all enqueued before the
// ones on disk, so mem is always served first.
type tier struct {
	precedence int
	mem        []*models.Record
	onDisk     int64
}

func (t *tier) len() int64 {
	return int64(len(t.mem)) + t.onDisk
}

// New returns an empty WorkQueue for key. spill and budget may be nil, in
// which case every record stays in memory.
func New(key string, spill *Spill, budget *MemoryBudget) *WorkQueue {
	return &WorkQueue{
		key:         key,
		tiers:       make(map[int]*tier),
		totalBudget: -1,
		spill:       spill,
		budget:      budget,
	}
}

// Key returns the queue key
func (q *WorkQueue) Key() string {
	return q.key
}

// Len returns the number of pending records
func (q *WorkQueue) Len() int64 {
	return q.count
}

// IsEmpty reports whether the queue holds no pending record
func (q *WorkQueue) IsEmpty() bool {
	return q.count == 0
}

// WakeTime returns the time before which the queue must not be polled
func (q *WorkQueue) WakeTime() time.Time {
	return q.wakeTime
}

// SetWakeTime sets the wake time
func (q *WorkQueue) SetWakeTime(t time.Time) {
	q.wakeTime = t
}

// Busy reports whether a record of the queue is in progress
func (q *WorkQueue) Busy() bool {
	return q.busy
}

// SetBusy sets the busy flag
func (q *WorkQueue) SetBusy(busy bool) {
	q.busy = busy
}

// Retired reports whether the queue was retired for being over budget
func (q *WorkQueue) Retired() bool {
	return q.retired
}

// SetRetired sets the retired flag
func (q *WorkQueue) SetRetired(retired bool) {
	q.retired = retired
}

func (q *WorkQueue) tier(precedence int) *tier {
	if t, ok := q.tiers[precedence]; ok {
		return t
	}

	t := &tier{precedence: precedence}
	q.tiers[precedence] = t

	i := sort.SearchInts(q.precedences, precedence)
	q.precedences = append(q.precedences, 0)
	copy(q.precedences[i+1:], q.precedences[i:])
	q.precedences[i] = precedence

	return t
}

func (q *WorkQueue) dropTierIfEmpty(t *tier) {
	if t.len() > 0 {
		return
	}

	delete(q.tiers, t.precedence)

	i := sort.SearchInts(q.precedences, t.precedence)
	if i < len(q.precedences) && q.precedences[i] == t.precedence {
		q.precedences = append(q.precedences[:i], q.precedences[i+1:]...)
	}
}

func (q *WorkQueue) head() *tier {
	if len(q.precedences) == 0 {
		return nil
	}

	return q.tiers[q.precedences[0]]
}
