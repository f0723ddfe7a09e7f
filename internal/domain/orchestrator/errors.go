package orchestrator

import "errors"

// Sentinel errors.
var (
	ErrNoAdapter        = errors.New("no adapter for platform")
	ErrRetriesExhausted = errors.New("retries exhausted")

	// errStale aborts ApplySync when the link changed since the task was selected.
	errStale = errors.New("stale sync task")
)
