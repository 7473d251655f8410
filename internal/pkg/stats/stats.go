// Package stats keeps the frontier counters, their per-second rates and
// their Prometheus exposition.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"
)

// Counter names a monotonic frontier counter
type Counter int

const (
	// Discovered counts records accepted by the scheduler
	Discovered Counter = iota
	// Duplicates counts records dropped by the seencheck
	Duplicates
	// Rejected counts records refused by the scheduler
	Rejected
	// Emitted counts records handed to workers
	Emitted
	// Succeeded counts records finished successfully
	Succeeded
	// Failed counts records that failed for good
	Failed
	// Disregarded counts records finished without being fetched
	Disregarded
	// Retried counts retryable failures put back in their queue
	Retried
	// Deleted counts records removed by an operator
	Deleted

	numCounters
)

var counterNames = [numCounters]string{
	"discovered",
	"duplicates",
	"rejected",
	"emitted",
	"succeeded",
	"failed",
	"disregarded",
	"retried",
	"deleted",
}

func (c Counter) String() string {
	if c < 0 || c >= numCounters {
		return fmt.Sprintf("counter(%d)", int(c))
	}
	return counterNames[c]
}

// Stats holds the counters of one frontier. A nil *Stats is valid and
// records nothing.
type Stats struct {
	counters  [numCounters]*ratecounter.Counter
	rates     [numCounters]*ratecounter.RateCounter
	fetchTime *mean
	pending   atomic.Int64
	inFlight  atomic.Int64
	queues    atomic.Int64
	paused    atomic.Bool
	prom      *prometheusStats
}

// New returns a Stats. Metrics are registered on opts.Registry when it is
// not nil.
func New(opts Options) (*Stats, error) {
	s := &Stats{
		fetchTime: &mean{},
	}

	for i := range s.counters {
		s.counters[i] = new(ratecounter.Counter)
		s.rates[i] = ratecounter.NewRateCounter(1 * time.Second)
	}

	prom, err := newPrometheusStats(opts)
	if err != nil {
		return nil, err
	}
	s.prom = prom

	return s, nil
}

// Incr increments c by 1
func (s *Stats) Incr(c Counter) {
	s.Add(c, 1)
}

// Add increments c by n
func (s *Stats) Add(c Counter, n int64) {
	if s == nil || n <= 0 {
		return
	}

	s.counters[c].Incr(n)
	s.rates[c].Incr(n)
	s.prom.add(c, n)
}

// Get returns the total of c
func (s *Stats) Get(c Counter) int64 {
	if s == nil {
		return 0
	}
	return s.counters[c].Value()
}

// Rate returns the number of increments of c over the last second
func (s *Stats) Rate(c Counter) int64 {
	if s == nil {
		return 0
	}
	return s.rates[c].Rate()
}

// Values returns every counter total by name
func (s *Stats) Values() map[string]int64 {
	values := make(map[string]int64, numCounters)
	for c := Counter(0); c < numCounters; c++ {
		values[c.String()] = s.Get(c)
	}
	return values
}

// Restore adds the given totals to the counters, it is used when a
// frontier is rebuilt from a checkpoint. Rates are left untouched.
func (s *Stats) Restore(values map[string]int64) error {
	if s == nil {
		return nil
	}

	for name, value := range values {
		c, ok := lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCounter, name)
		}
		if value <= 0 {
			continue
		}
		s.counters[c].Incr(value)
		s.prom.add(c, value)
	}

	return nil
}

func lookup(name string) (Counter, bool) {
	for i, n := range counterNames {
		if n == name {
			return Counter(i), true
		}
	}
	return 0, false
}

// ObserveFetch records how long a worker took to process a record
func (s *Stats) ObserveFetch(d time.Duration) {
	if s == nil {
		return
	}
	s.fetchTime.add(d)
	s.prom.observeFetch(d)
}

// MeanFetchTime returns the mean of the durations given to ObserveFetch
func (s *Stats) MeanFetchTime() time.Duration {
	if s == nil {
		return 0
	}
	return s.fetchTime.get()
}

// SetPending sets the number of records waiting in queues
func (s *Stats) SetPending(n int64) {
	if s == nil {
		return
	}
	s.pending.Store(n)
	s.prom.setGauge(s.prom.pending, float64(n))
}

// SetInFlight sets the number of records handed to workers and not finished
func (s *Stats) SetInFlight(n int64) {
	if s == nil {
		return
	}
	s.inFlight.Store(n)
	s.prom.setGauge(s.prom.inFlight, float64(n))
}

// SetQueues sets the number of queues in the directory
func (s *Stats) SetQueues(n int64) {
	if s == nil {
		return
	}
	s.queues.Store(n)
	s.prom.setGauge(s.prom.queues, float64(n))
}

// SetPaused records the state of the pause gate
func (s *Stats) SetPaused(paused bool) {
	if s == nil {
		return
	}
	if s.paused.Swap(paused) != paused {
		var v float64
		if paused {
			v = 1
		}
		s.prom.setGauge(s.prom.paused, v)
	}
}

// GetMap returns a map of the current stats.
// This is used by the live stats table and the report command.
func (s *Stats) GetMap() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{}
	}

	return map[string]interface{}{
		"URI/s":           s.Rate(Emitted),
		"Discovered":      s.Get(Discovered),
		"Duplicates":      s.Get(Duplicates),
		"Rejected":        s.Get(Rejected),
		"Emitted":         s.Get(Emitted),
		"Succeeded":       s.Get(Succeeded),
		"Failed":          s.Get(Failed),
		"Disregarded":     s.Get(Disregarded),
		"Retried":         s.Get(Retried),
		"Pending":         s.pending.Load(),
		"In flight":       s.inFlight.Load(),
		"Queues":          s.queues.Load(),
		"Is paused?":      s.paused.Load(),
		"Mean fetch time": s.fetchTime.get(),
	}
}
