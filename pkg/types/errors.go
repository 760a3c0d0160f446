package types

import "errors"

// Domain errors shared across pipeline packages.
var (
	// ErrJobNotFound is returned by status queries for an unknown job id.
	// It is a lookup miss, not a processing failure.
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyExtraction is returned when every extraction strategy
	// produced empty or whitespace-only text.
	ErrEmptyExtraction = errors.New("no text could be extracted")

	// ErrQueueUnavailable is returned when the queue backend cannot accept
	// a submission. Callers should treat it as "analysis not currently
	// available" rather than retrying immediately.
	ErrQueueUnavailable = errors.New("job queue unavailable")
)
