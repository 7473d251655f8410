// Package precedence assigns the scheduling tier of a record when it enters
// the frontier. Lower values are scheduled sooner.
package precedence

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	// Highest is the precedence given to seeds and prerequisites
	Highest = 0
	// DefaultBase is the precedence of the base policy when none is configured
	DefaultBase = 1
	// DefaultField is the history field read by the preloaded policy
	DefaultField = "precedence"
)

// ErrUnknownPolicy is returned by New for an unknown policy name
var ErrUnknownPolicy = errors.New("unknown precedence policy")

// Policy sets r.Precedence. It is called exactly once per record, at
// schedule time.
type Policy interface {
	Assign(r *models.Record)
}

// Options selects and configures a Policy
type Options struct {
	Name     string // base, random or preloaded
	Base     int
	Max      int    // random offset upper bound
	Fallback string // policy used by preloaded when history has nothing
	Field    string
	Seed     int64 // random source seed, 0 means time based
}

// New returns the policy named in opts. history is only used by the preloaded
// policy and may be nil otherwise.
func New(opts Options, history HistoryStore, logger logrus.FieldLogger) (Policy, error) {
	if opts.Base <= 0 {
		opts.Base = DefaultBase
	}

	switch opts.Name {
	case "", "base":
		return &Base{Value: opts.Base}, nil
	case "random":
		return NewRandom(opts.Base, opts.Max, opts.Seed), nil
	case "preloaded":
		if history == nil {
			return nil, errors.New("preloaded precedence policy needs a history store")
		}
		if opts.Fallback == "preloaded" {
			return nil, errors.New("preloaded precedence policy cannot fall back to itself")
		}

		fallbackOpts := opts
		fallbackOpts.Name = opts.Fallback
		fallback, err := New(fallbackOpts, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("fallback policy: %w", err)
		}

		return NewPreloaded(history, fallback, opts.Field, logger), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, opts.Name)
}

func bypass(r *models.Record) bool {
	if r.Seed || r.Prerequisite {
		r.Precedence = Highest
		return true
	}

	return false
}

// Base gives every record the same precedence.
type Base struct {
	Value int
}

// Assign implements Policy
func (p *Base) Assign(r *models.Record) {
	if bypass(r) {
		return
	}

	r.Precedence = p.Value
}

// Random adds a uniform offset in [1, Max] to the base value. It is meant to
// exercise precedence ordering.
type Random struct {
	base int
	max  int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random policy. A zero seed uses the current time.
func NewRandom(base, max int, seed int64) *Random {
	if max <= 0 {
		max = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Random{
		base: base,
		max:  max,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Assign implements Policy
func (p *Random) Assign(r *models.Record) {
	if bypass(r) {
		return
	}

	p.mu.Lock()
	offset := 1 + p.rng.Intn(p.max)
	p.mu.Unlock()

	r.Precedence = p.base + offset
}
