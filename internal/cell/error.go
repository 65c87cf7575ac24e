package cell

import "errors"

var (
	// ErrAllocation is an error that occurs when the [Factory] of a [Cell]
	// fails to construct the completion object.
	ErrAllocation = errors.New("failed to allocate completion")

	// ErrAlreadyInitialized is an error that occurs when a [Cell] that already
	// holds a completion object is initialized again.
	ErrAlreadyInitialized = errors.New("cell already initialized")

	// ErrNotInitialized is an error that occurs when the completion object of
	// a [Cell] is accessed before the [Cell] was initialized.
	ErrNotInitialized = errors.New("cell not initialized")
)
