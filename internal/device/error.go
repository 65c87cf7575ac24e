package device

import "errors"

// ErrIO is an error that occurs when a read or write on the device cannot be
// served, e.g. because the device is not initialized or was torn down while
// the call was in flight. The underlying cause is wrapped alongside it.
var ErrIO = errors.New("device i/o error")
