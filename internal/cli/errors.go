package cli

import "errors"

var (
	// ErrUnknownCommand is returned for a command Run does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned for missing or malformed arguments.
	ErrUsage = errors.New("invalid usage")
)
