package host

import "errors"

var (
	// ErrNoMinors is an error that occurs when a [Registry] has no free minor
	// numbers left to hand out for a new [Registration].
	ErrNoMinors = errors.New("no free minor numbers")

	// ErrNameInUse is an error that occurs when a device name is already held
	// by another [Registration].
	ErrNameInUse = errors.New("device name already in use")

	// ErrNoDevice is an error that occurs when a device is opened or accessed
	// that is not (or no longer) published by its [Registry].
	ErrNoDevice = errors.New("no such device")

	// ErrAlreadyBound is an error that occurs when file operations are bound
	// to a [Registration] twice.
	ErrAlreadyBound = errors.New("registration already bound")

	// ErrNotBound is an error that occurs when a [Registration] is expected to
	// be published, but its file operations were never bound.
	ErrNotBound = errors.New("registration not bound")

	// ErrClosed is an error that occurs when a closed [File] is used.
	ErrClosed = errors.New("file already closed")

	// ErrInvalidName is an error that occurs when an empty device name is
	// given.
	ErrInvalidName = errors.New("invalid device name")
)
