// Package seencheck is the durable already-seen set of the frontier, keyed by
// URI fingerprint.
package seencheck

import (
	"fmt"
	"path"
	"strconv"
	"sync"

	"github.com/paulbellamy/ratecounter"
	"github.com/philippgille/gokv/leveldb"
	"github.com/zeebo/xxh3"
)

const stripes = 256

// Seencheck holds the Seencheck database and the seen counter
type Seencheck struct {
	Count *ratecounter.Counter
	DB    leveldb.Store

	path  string
	locks [stripes]sync.Mutex
}

// New opens (or creates) the seencheck database under jobPath
func New(jobPath string) (*Seencheck, error) {
	dbPath := path.Join(jobPath, "seencheck")

	db, err := leveldb.NewStore(leveldb.Options{Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("open seencheck: %w", err)
	}

	return &Seencheck{
		Count: new(ratecounter.Counter),
		DB:    db,
		path:  dbPath,
	}, nil
}

// Fingerprint returns the fingerprint of a canonical URI identity
func Fingerprint(identity string) uint64 {
	return xxh3.HashString(identity)
}

// ContainsOrInsert marks fp as seen and reports whether it already was. It is
// atomic for a given fingerprint within the process.
func (s *Seencheck) ContainsOrInsert(fp uint64) (bool, error) {
	lock := &s.locks[fp%stripes]
	lock.Lock()
	defer lock.Unlock()

	key := strconv.FormatUint(fp, 10)

	var value bool
	found, err := s.DB.Get(key, &value)
	if err != nil {
		return false, fmt.Errorf("seencheck get: %w", err)
	}

	if found {
		return true, nil
	}

	if err := s.DB.Set(key, true); err != nil {
		return false, fmt.Errorf("seencheck set: %w", err)
	}
	s.Count.Incr(1)

	return false, nil
}

// Forget removes fp from the set, forgetting an unknown fingerprint is a
// no-op
func (s *Seencheck) Forget(fp uint64) error {
	lock := &s.locks[fp%stripes]
	lock.Lock()
	defer lock.Unlock()

	key := strconv.FormatUint(fp, 10)

	var value bool
	found, err := s.DB.Get(key, &value)
	if err != nil {
		return fmt.Errorf("seencheck get: %w", err)
	}
	if !found {
		return nil
	}

	if err := s.DB.Delete(key); err != nil {
		return fmt.Errorf("seencheck delete: %w", err)
	}
	s.Count.Incr(-1)

	return nil
}

// Path returns the location of the database, used to reference it from
// snapshots.
func (s *Seencheck) Path() string {
	return s.path
}

// Close closes the database
func (s *Seencheck) Close() error {
	return s.DB.Close()
}
