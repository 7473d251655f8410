package queue

import (
	"fmt"
	"time"
)

// Report is a point-in-time view of a WorkQueue
type Report struct {
	Key         string    `json:"key"`
	Count       int64     `json:"count"`
	InMemory    int64     `json:"in_memory"`
	OnDisk      int64     `json:"on_disk"`
	Precedence  int       `json:"precedence"`
	WakeTime    time.Time `json:"wake_time"`
	Busy        bool      `json:"busy"`
	Retired     bool      `json:"retired"`
	Enqueued    int64     `json:"enqueued"`
	Emitted     int64     `json:"emitted"`
	Expenditure int64     `json:"expenditure"`
	TotalBudget int64     `json:"total_budget"`
	Errors      int64     `json:"errors"`
}

// Report returns the current state of the queue
func (q *WorkQueue) Report() Report {
	r := Report{
		Key:         q.key,
		Count:       q.count,
		WakeTime:    q.wakeTime,
		Busy:        q.busy,
		Retired:     q.retired,
		Enqueued:    q.enqueued,
		Emitted:     q.emitted,
		Expenditure: q.expenditure,
		TotalBudget: q.totalBudget,
		Errors:      q.errors,
	}

	for _, t := range q.tiers {
		r.InMemory += int64(len(t.mem))
		r.OnDisk += t.onDisk
	}

	if t := q.head(); t != nil {
		r.Precedence = t.precedence
	}

	return r
}

// String returns a single line describing the queue
func (r Report) String() string {
	budget := "unlimited"
	if r.TotalBudget >= 0 {
		budget = fmt.Sprint(r.TotalBudget)
	}

	return fmt.Sprintf("%s %d (%d in memory, %d on disk) p%d spent %d/%s errors %d busy=%t retired=%t",
		r.Key, r.Count, r.InMemory, r.OnDisk, r.Precedence,
		r.Expenditure, budget, r.Errors, r.Busy, r.Retired)
}
