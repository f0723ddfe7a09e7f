package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks a setting rejected by Validate.
// ErrLoadConfig marks a config file or environment that could not be read.
var (
	ErrInvalidConfig = errors.New("invalid codeboard config")
	ErrLoadConfig    = errors.New("read codeboard config")
)

// UnknownDriverError is returned for a store_driver other than memory or
// postgres. It matches ErrInvalidConfig.
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("%s: unknown store_driver %q (want %q or %q)", ErrInvalidConfig, e.Driver, DriverMemory, DriverPostgres)
}

func (e *UnknownDriverError) Unwrap() error { return ErrInvalidConfig }
