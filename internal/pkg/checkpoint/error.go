package checkpoint

import "errors"

var (
	// ErrNoValidCheckpoint is returned by Latest when no checkpoint carries a validity marker
	ErrNoValidCheckpoint = errors.New("no valid checkpoint")

	// ErrInvalidCheckpoint is returned when recovering from a checkpoint without validity marker
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)
