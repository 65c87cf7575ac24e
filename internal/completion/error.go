package completion

import "errors"

// ErrDestroyed is an error that occurs when a [Completion] is waited on after
// (or while) it is being destroyed.
var ErrDestroyed = errors.New("completion destroyed")
