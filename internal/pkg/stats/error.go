package stats

import "errors"

var (
	// ErrUnknownCounter is returned when restoring a counter name that does not exist
	ErrUnknownCounter = errors.New("unknown counter")
)
