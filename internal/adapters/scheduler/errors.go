package scheduler

import "errors"

// ErrUnknownJob is returned for job names that were never registered.
var ErrUnknownJob = errors.New("unknown job")
