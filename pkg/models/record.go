package models

import (
	"time"
)

// Record is the unit of work handled by the frontier: one URI, its immutable
// identity and the scheduling state the frontier mutates.
type Record struct {
	Identity      string    // Identity is the canonical (SURT by default) form used for duplicate detection
	URL           string    // URL is the normalized URL a worker fetches
	Via           string    // Via is the URL this record was discovered from, informational only
	HopPath       string    // HopPath is the chain of hop types from the seed, opaque to the frontier
	Precedence    int       // Precedence is the priority tier, lower is scheduled sooner
	QueueKey      string    // QueueKey is the per-key queue this record belongs to
	ScheduleCount int       // ScheduleCount is the number of times the record was put in a queue
	FailureCount  int       // FailureCount is the number of retryable failures so far
	State         State     // State is the record state as tracked by the frontier
	Seed          bool      // Seed is true for records given as crawl seeds
	Prerequisite  bool      // Prerequisite is true for records other fetches depend on (e.g. dns:)
	ForceFetch    bool      // ForceFetch bypasses the seencheck
	Fingerprint   uint64    // Fingerprint is the hash of Identity
	Ordinal       uint64    // Ordinal is the insertion stamp set by the queue
	DiscoveredAt  time.Time // DiscoveredAt is set when the record is first scheduled
}

// NewRecord returns a pending record for the given URL. The identity,
// queue key and precedence are filled in when the record is scheduled.
func NewRecord(URL, via, hopPath string) *Record {
	return &Record{
		URL:     URL,
		Via:     via,
		HopPath: hopPath,
		State:   StatePending,
	}
}

// NewSeed returns a pending seed record.
func NewSeed(URL string) *Record {
	r := NewRecord(URL, "", "")
	r.Seed = true
	return r
}

// Hops returns the number of hops from the seed.
func (r *Record) Hops() int {
	return len(r.HopPath)
}

// String returns the URL of the record.
func (r *Record) String() string {
	return r.URL
}

// State qualifies a record in the frontier
type State int

const (
	// StatePending is for records waiting in a queue
	StatePending State = iota
	// StateInProgress is for records handed to a worker
	StateInProgress
	// StateCompleted is for records whose fetch finished
	StateCompleted
	// StateFailedRetryable is for records that failed and will be retried
	StateFailedRetryable
	// StateFailedTerminal is for records that failed for good
	StateFailedTerminal
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	case StateFailedRetryable:
		return "failed-retryable"
	case StateFailedTerminal:
		return "failed-terminal"
	}

	return ""
}

// Outcome is what a worker reports for a fetch attempt
type Outcome int

const (
	// OutcomeSuccess is a completed fetch
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable is a transient failure (connection lost, DNS not ready...)
	OutcomeRetryable
	// OutcomeTerminal is a failure that must not be retried
	OutcomeTerminal
	// OutcomeDisregarded is a URI that was not fetched on purpose (robots, scope)
	OutcomeDisregarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeDisregarded:
		return "disregarded"
	}

	return ""
}
