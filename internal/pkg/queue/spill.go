package queue

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/beeker1121/goque"
	"github.com/internetarchive/frontier/internal/pkg/utils"
	"github.com/internetarchive/frontier/pkg/models"
)

// Spill is the on-disk overflow shared by every WorkQueue of a frontier, one
// goque prefix per queue key and precedence tier. It is scratch space: its
// directory is cleared when opened, durability comes from checkpoints.
type Spill struct {
	dir    string
	pq     *goque.PrefixQueue
	closed *utils.TAtomBool
	count  atomic.Int64
}

// OpenSpill clears dir and opens a fresh spill storage in it
func OpenSpill(dir string) (*Spill, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear spill directory: %w", err)
	}

	pq, err := goque.OpenPrefixQueue(dir)
	if err != nil {
		return nil, fmt.Errorf("open spill queue: %w", err)
	}

	return &Spill{
		dir:    dir,
		pq:     pq,
		closed: new(utils.TAtomBool),
	}, nil
}

func spillPrefix(key string, precedence int) []byte {
	return []byte(key + "\x1f" + strconv.Itoa(precedence))
}

func (s *Spill) push(prefix []byte, r *models.Record) error {
	if s.closed.Get() {
		return ErrSpillClosed
	}

	if _, err := s.pq.EnqueueObject(prefix, r); err != nil {
		return fmt.Errorf("spill enqueue: %w", err)
	}
	s.count.Add(1)

	return nil
}

func (s *Spill) pop(prefix []byte) (*models.Record, error) {
	if s.closed.Get() {
		return nil, ErrSpillClosed
	}

	item, err := s.pq.Dequeue(prefix)
	if err != nil {
		if errors.Is(err, goque.ErrEmpty) {
			return nil, fmt.Errorf("spill out of sync for %q: %w", prefix, err)
		}
		return nil, fmt.Errorf("spill dequeue: %w", err)
	}
	s.count.Add(-1)

	r := new(models.Record)
	if err := item.ToObject(r); err != nil {
		return nil, fmt.Errorf("spill decode: %w", err)
	}

	return r, nil
}

// Len returns the number of records currently on disk
func (s *Spill) Len() int64 {
	return s.count.Load()
}

// Close closes the spill storage
func (s *Spill) Close() error {
	if s.closed.Get() {
		return ErrSpillClosed
	}
	s.closed.Set(true)

	return s.pq.Close()
}

// MemoryBudget caps the number of records held in memory across all the
// WorkQueues sharing it. A zero or negative limit means no cap.
type MemoryBudget struct {
	limit int64
	used  atomic.Int64
}

// NewMemoryBudget returns a MemoryBudget of limit records
func NewMemoryBudget(limit int64) *MemoryBudget {
	return &MemoryBudget{limit: limit}
}

func (b *MemoryBudget) tryAcquire() bool {
	if b == nil {
		return true
	}

	for {
		used := b.used.Load()
		if b.limit > 0 && used >= b.limit {
			return false
		}
		if b.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

// acquire takes a slot even over the limit, for records that must stay in
// memory (retries, peeked heads).
func (b *MemoryBudget) acquire() {
	if b != nil {
		b.used.Add(1)
	}
}

func (b *MemoryBudget) release(n int64) {
	if b != nil {
		b.used.Add(-n)
	}
}

// Used returns the number of records held in memory
func (b *MemoryBudget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}

// Limit returns the configured limit
func (b *MemoryBudget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}
