package queue

import "errors"

var (
	// ErrQueueEmpty is returned when popping or peeking an empty queue
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrSpillClosed is returned when the spill storage is used after Close
	ErrSpillClosed = errors.New("spill storage is closed")

	// ErrNilRecord is returned when enqueuing a nil record
	ErrNilRecord = errors.New("cannot enqueue nil record")
)
