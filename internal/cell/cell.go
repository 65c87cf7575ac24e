// Package cell implements a lazily initialized, lock-protected holder of
// exactly one [completion.Completion].
//
// The completion object is only ever reached through a [Cell]. Accessors
// follow a two-phase discipline: the lock is held just long enough to copy out
// a [completion.Handle], and is released before any (potentially blocking)
// wait or signal runs on that handle.
package cell

import (
	"fmt"
	"sync"

	"github.com/desertwitch/completion/internal/completion"
)

// Factory constructs the completion object held by a [Cell].
type Factory func() (*completion.Completion, error)

// NewCompletion is the default [Factory], wrapping [completion.New].
func NewCompletion() (*completion.Completion, error) {
	return completion.New(), nil
}

//nolint:gochecknoglobals
var global = New(NewCompletion)

// Global returns the process-wide [Cell]. It starts out empty and is filled
// by the device registration.
func Global() *Cell {
	return global
}

// Cell is the principal holder of a completion object.
type Cell struct {
	sync.Mutex
	factory Factory
	obj     *completion.Completion
}

// New returns a pointer to a new, empty [Cell]. The given [Factory] is used
// by [Cell.Initialize] to construct the completion object.
func New(factory Factory) *Cell {
	return &Cell{
		factory: factory,
	}
}

// Initialize constructs the completion object and stores it in the [Cell].
// An already initialized [Cell] is left untouched and [ErrAlreadyInitialized]
// is returned. A failing [Factory] results in [ErrAllocation].
func (c *Cell) Initialize() error {
	c.Lock()
	defer c.Unlock()

	if c.obj != nil {
		return fmt.Errorf("(cell-init) %w", ErrAlreadyInitialized)
	}

	obj, err := c.factory()
	if err != nil {
		return fmt.Errorf("(cell-init) %w: %w", ErrAllocation, err)
	}

	if obj == nil {
		return fmt.Errorf("(cell-init) %w: factory returned nil", ErrAllocation)
	}

	c.obj = obj

	return nil
}

// Handle copies out the [completion.Handle] of the held completion object.
// The lock is released before returning, so the caller is free to block on
// the returned handle.
func (c *Cell) Handle() (completion.Handle, error) { //nolint:ireturn
	c.Lock()
	defer c.Unlock()

	if c.obj == nil {
		return nil, fmt.Errorf("(cell-handle) %w", ErrNotInitialized)
	}

	return c.obj, nil
}

// WithObject obtains the [completion.Handle] under the lock, releases the
// lock and only then invokes fn with the handle.
func (c *Cell) WithObject(fn func(completion.Handle) error) error {
	h, err := c.Handle()
	if err != nil {
		return err
	}

	return fn(h)
}

// Teardown removes the completion object from the [Cell] and destroys it,
// waking any still parked waiters with [completion.ErrDestroyed]. The [Cell]
// can be initialized again afterwards.
func (c *Cell) Teardown() error {
	c.Lock()
	obj := c.obj
	c.obj = nil
	c.Unlock()

	if obj == nil {
		return fmt.Errorf("(cell-teardown) %w", ErrNotInitialized)
	}

	obj.Destroy()

	return nil
}

// Initialized returns whether the [Cell] currently holds a completion object.
func (c *Cell) Initialized() bool {
	c.Lock()
	defer c.Unlock()

	return c.obj != nil
}

// Stats is a snapshot of the held completion object.
type Stats struct {
	Initialized bool
	Done        bool
	Waiters     int
	Signals     uint64
}

// Stats returns a [Stats] snapshot of the held completion object.
func (c *Cell) Stats() Stats {
	c.Lock()
	obj := c.obj
	c.Unlock()

	if obj == nil {
		return Stats{}
	}

	return Stats{
		Initialized: true,
		Done:        obj.Done(),
		Waiters:     obj.Waiters(),
		Signals:     obj.Signals(),
	}
}
