package queue

import "time"

// TotalBudget returns the budget of the queue, -1 meaning unlimited
func (q *WorkQueue) TotalBudget() int64 {
	return q.totalBudget
}

// SetTotalBudget sets the budget of the queue, -1 meaning unlimited
func (q *WorkQueue) SetTotalBudget(budget int64) {
	q.totalBudget = budget
}

// Expend charges cost to the queue
func (q *WorkQueue) Expend(cost int64) {
	q.expenditure += cost
}

// Expenditure returns what the queue has spent so far
func (q *WorkQueue) Expenditure() int64 {
	return q.expenditure
}

// NoteError counts a failed fetch of the queue
func (q *WorkQueue) NoteError() {
	q.errors++
}

// OverBudget reports whether the queue spent its whole budget
func (q *WorkQueue) OverBudget() bool {
	return q.totalBudget >= 0 && q.expenditure >= q.totalBudget
}

// State is the part of a WorkQueue that is not its records, as saved in
// checkpoints.
type State struct {
	Key         string
	WakeTime    int64 // unix nanoseconds, 0 for none
	Busy        bool
	Retired     bool
	TotalBudget int64
	Expenditure int64
	Errors      int64
	Enqueued    int64
	Emitted     int64
	Count       int64
}

// State returns the counters and flags of the queue
func (q *WorkQueue) State() State {
	s := State{
		Key:         q.key,
		Busy:        q.busy,
		Retired:     q.retired,
		TotalBudget: q.totalBudget,
		Expenditure: q.expenditure,
		Errors:      q.errors,
		Enqueued:    q.enqueued,
		Emitted:     q.emitted,
		Count:       q.count,
	}
	if !q.wakeTime.IsZero() {
		s.WakeTime = q.wakeTime.UnixNano()
	}

	return s
}

// SetState restores the counters and flags saved by State. The busy flag is
// not restored: nothing is in progress in a restored queue.
func (q *WorkQueue) SetState(s State) {
	q.retired = s.Retired
	q.totalBudget = s.TotalBudget
	q.expenditure = s.Expenditure
	q.errors = s.Errors
	q.enqueued = s.Enqueued
	q.emitted = s.Emitted
	if s.WakeTime != 0 {
		q.wakeTime = time.Unix(0, s.WakeTime)
	} else {
		q.wakeTime = time.Time{}
	}
}
