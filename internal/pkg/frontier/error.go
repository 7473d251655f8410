package frontier

import "errors"

var (
	// ErrStorage wraps every failure of the queue or seencheck storage.
	// Nothing was scheduled, snapshotted or restored when it is returned.
	ErrStorage = errors.New("frontier storage failure")

	// ErrClosed is returned when the frontier is used after Close
	ErrClosed = errors.New("frontier is closed")

	// ErrNotEmpty is returned when restoring into a frontier that holds queues
	ErrNotEmpty = errors.New("frontier is not empty")

	// ErrInvalidSnapshot is returned when a snapshot stream cannot be decoded
	ErrInvalidSnapshot = errors.New("invalid frontier snapshot")

	// ErrUnknownQueue is returned for operations naming a queue that does not exist
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrNoSeencheck is returned by New when no already-seen store is given
	ErrNoSeencheck = errors.New("frontier needs an already-seen store")
)
