package configuration

import "errors"

var (
	// ErrInvalidLogLevel is an error that occurs when a configured log level
	// is not one of debug, info, warn or error.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidValue is an error that occurs when a configured number is out
	// of its allowed range.
	ErrInvalidValue = errors.New("invalid configuration value")
)
