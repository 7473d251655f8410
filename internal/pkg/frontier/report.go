package frontier

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/internetarchive/frontier/internal/pkg/queue"
	"github.com/internetarchive/frontier/internal/pkg/stats"
)

// Counts are the totals of a frontier
type Counts struct {
	Discovered  int64 `json:"discovered"`
	Duplicates  int64 `json:"duplicates"`
	Rejected    int64 `json:"rejected"`
	Emitted     int64 `json:"emitted"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	Disregarded int64 `json:"disregarded"`
	Retried     int64 `json:"retried"`
	Deleted     int64 `json:"deleted"`
	Pending     int64 `json:"pending"`
	InFlight    int64 `json:"in_flight"`
	Queues      int64 `json:"queues"`
}

// Counts returns the current totals. The cumulative ones are only
// maintained when the frontier was given a Stats.
func (f *Frontier) Counts() Counts {
	f.mu.Lock()
	c := Counts{
		Pending:  f.pending,
		InFlight: int64(len(f.inFlight)),
		Queues:   int64(len(f.queues)),
	}
	f.mu.Unlock()

	c.Discovered = f.stats.Get(stats.Discovered)
	c.Duplicates = f.stats.Get(stats.Duplicates)
	c.Rejected = f.stats.Get(stats.Rejected)
	c.Emitted = f.stats.Get(stats.Emitted)
	c.Succeeded = f.stats.Get(stats.Succeeded)
	c.Failed = f.stats.Get(stats.Failed)
	c.Disregarded = f.stats.Get(stats.Disregarded)
	c.Retried = f.stats.Get(stats.Retried)
	c.Deleted = f.stats.Get(stats.Deleted)

	return c
}

// QueueReports returns a report of every queue, ordered by key
func (f *Frontier) QueueReports() []queue.Report {
	f.mu.Lock()
	defer f.mu.Unlock()

	reports := make([]queue.Report, 0, len(f.queues))
	for _, key := range f.sortedKeysLocked() {
		q := f.queues[key]
		q.Lock()
		reports = append(reports, q.Report())
		q.Unlock()
	}

	return reports
}

// Summary returns a single line describing the state of the queues
func (f *Frontier) Summary() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var inProcess, ready, snoozed, empty, retired int64

	for key, q := range f.queues {
		q.Lock()
		switch {
		case q.Retired():
			retired++
		case q.Busy():
			inProcess++
		case q.IsEmpty():
			empty++
		case f.ready.contains(key):
			ready++
		default:
			snoozed++
		}
		q.Unlock()
	}

	return fmt.Sprintf("%s URI queues: %s active (%s in-process; %s ready; %s snoozed); %s retained-empty; %s retired",
		humanize.Comma(int64(len(f.queues))),
		humanize.Comma(inProcess+ready+snoozed),
		humanize.Comma(inProcess),
		humanize.Comma(ready),
		humanize.Comma(snoozed),
		humanize.Comma(empty),
		humanize.Comma(retired))
}

func (f *Frontier) sortedKeysLocked() []string {
	keys := make([]string, 0, len(f.queues))
	for key := range f.queues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
