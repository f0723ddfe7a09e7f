package model

import "errors"

// Sentinel error kinds shared across the domain. Callers match with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrUnknownMetric     = errors.New("unknown metric")
)
