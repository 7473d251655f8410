package frontier

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/internetarchive/frontier/internal/pkg/queue"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
)

// snapshotVersion is bumped whenever the snapshot layout changes
const snapshotVersion = 1

// snapshotHeader opens a snapshot stream
type snapshotHeader struct {
	Version  int
	Time     time.Time
	SeenPath string
	Counters map[string]int64
	Queues   int
	Pending  int64
}

// queueHeader precedes the records of one queue. Count records follow it.
type queueHeader struct {
	State    queue.State
	InFlight []*models.Record
	Count    int64
}

// snapshotTrailer closes a snapshot stream
type snapshotTrailer struct {
	Queues  int
	Records int64
}

// pather is implemented by already-seen stores living in a directory
type pather interface {
	Path() string
}

// Snapshot writes the whole frontier state to w: every queue with its
// ordered records, wake time, flags and budget, the records in progress and
// the counters. The already-seen store is only referenced by its path.
// Next, Schedule and Finished are blocked while it runs.
func (f *Frontier) Snapshot(w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	enc := gob.NewEncoder(w)

	header := snapshotHeader{
		Version:  snapshotVersion,
		Time:     f.now(),
		Counters: f.stats.Values(),
		Queues:   len(f.queues),
		Pending:  f.pending,
	}
	if p, ok := f.seen.(pather); ok {
		header.SeenPath = p.Path()
	}

	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("%w: snapshot header: %w", ErrStorage, err)
	}

	inFlight := make(map[string][]*models.Record)
	for _, e := range f.inFlight {
		inFlight[e.queue.Key()] = append(inFlight[e.queue.Key()], e.record)
	}

	var records int64
	for _, key := range f.sortedKeysLocked() {
		q := f.queues[key]

		q.Lock()
		n, err := f.snapshotQueue(enc, q, inFlight[key])
		q.Unlock()

		records += n
		if err != nil {
			return fmt.Errorf("%w: snapshot queue %s: %w", ErrStorage, key, err)
		}
	}

	if err := enc.Encode(&snapshotTrailer{Queues: len(f.queues), Records: records}); err != nil {
		return fmt.Errorf("%w: snapshot trailer: %w", ErrStorage, err)
	}

	f.log.WithFields(logrus.Fields{
		"queues":  len(f.queues),
		"records": records,
	}).Info("Frontier snapshot written")

	return nil
}

func (f *Frontier) snapshotQueue(enc *gob.Encoder, q *queue.WorkQueue, inFlight []*models.Record) (int64, error) {
	header := queueHeader{
		State:    q.State(),
		InFlight: inFlight,
		Count:    q.Len(),
	}

	if err := enc.Encode(&header); err != nil {
		return 0, err
	}

	var n int64
	err := q.Walk(func(r *models.Record) error {
		n++
		return enc.Encode(r)
	})

	return n, err
}

// Restore rebuilds the frontier from a stream written by Snapshot. The
// frontier must not hold any queue. Records that were in progress are put
// back as pending at the head of their queue.
func (f *Frontier) Restore(rd io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queues) > 0 || f.pending > 0 || len(f.inFlight) > 0 {
		return ErrNotEmpty
	}

	dec := gob.NewDecoder(rd)

	var header snapshotHeader
	if err := dec.Decode(&header); err != nil {
		return fmt.Errorf("%w: header: %w", ErrInvalidSnapshot, err)
	}
	if header.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, header.Version)
	}

	now := f.now()

	var records int64
	for i := 0; i < header.Queues; i++ {
		n, err := f.restoreQueue(dec, now)
		records += n
		if err != nil {
			f.resetLocked()
			return err
		}
	}

	var trailer snapshotTrailer
	if err := dec.Decode(&trailer); err != nil {
		f.resetLocked()
		return fmt.Errorf("%w: trailer: %w", ErrInvalidSnapshot, err)
	}
	if trailer.Queues != header.Queues {
		f.resetLocked()
		return fmt.Errorf("%w: %d queues announced, %d written", ErrInvalidSnapshot, header.Queues, trailer.Queues)
	}

	if err := f.stats.Restore(header.Counters); err != nil {
		f.log.WithFields(logrus.Fields{
			"error": err,
		}).Warn("Unable to restore frontier counters")
	}
	f.updateGaugesLocked()

	f.log.WithFields(logrus.Fields{
		"queues":   len(f.queues),
		"records":  records,
		"pending":  f.pending,
		"taken_at": header.Time,
		"seen":     header.SeenPath,
	}).Info("Frontier restored")

	return nil
}

func (f *Frontier) restoreQueue(dec *gob.Decoder, now time.Time) (int64, error) {
	var header queueHeader
	if err := dec.Decode(&header); err != nil {
		return 0, fmt.Errorf("%w: queue header: %w", ErrInvalidSnapshot, err)
	}

	q := f.newQueueLocked(header.State.Key)
	q.Lock()
	defer q.Unlock()

	var n int64
	for ; n < header.Count; n++ {
		// gob does not transmit zero values, decode in a fresh record
		r := new(models.Record)
		if err := dec.Decode(r); err != nil {
			return n, fmt.Errorf("%w: queue %s: %w", ErrInvalidSnapshot, header.State.Key, err)
		}
		r.State = models.StatePending

		if err := q.Enqueue(r); err != nil {
			return n, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	for i := len(header.InFlight) - 1; i >= 0; i-- {
		r := header.InFlight[i]
		r.State = models.StatePending

		if err := q.EnqueueFront(r); err != nil {
			return n, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		n++
	}

	// After the records, so the restored counters are not incremented again
	q.SetState(header.State)

	f.pending += q.Len()
	if q.Retired() {
		f.retiredPending += q.Len()
	}
	f.placeLocked(q, now)

	return n, nil
}

// resetLocked empties a frontier whose restore failed halfway
func (f *Frontier) resetLocked() {
	for key, q := range f.queues {
		q.Lock()
		_, err := q.Filter(func(*models.Record) bool { return true })
		q.Unlock()
		if err != nil && !errors.Is(err, queue.ErrSpillClosed) {
			f.log.WithFields(logrus.Fields{
				"queue": key,
				"error": err,
			}).Warn("Unable to clear queue after failed restore")
		}
	}

	f.queues = make(map[string]*queue.WorkQueue)
	f.ready = newWakeHeap()
	f.snoozed = newWakeHeap()
	f.idle = newWakeHeap()
	f.pending = 0
	f.retiredPending = 0
}
