// Package host implements a small in-process I/O dispatch framework.
//
// Devices obtain a [Registration] from a [Registry], bind their
// [FileOperations] to it and are only then visible to [Registry.Open]. Any
// open, read, write and release on a resulting [File] is routed to the bound
// [FileOperations], with results and errors reported back to the caller.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxMinors is the default amount of minor numbers of a [Registry].
const DefaultMaxMinors = 64

// FileOperations are the handlers a device binds to its [Registration].
type FileOperations interface {
	Open(f *File) error
	Read(f *File, buf []byte, offset int64) (int, error)
	Write(f *File, buf []byte, offset int64) (int, error)
	Release(f *File)
}

// Registry is the principal implementation of the dispatch framework. It hands
// out minor numbers and routes file calls to the published devices.
type Registry struct {
	sync.RWMutex
	maxMinors int
	minors    map[int]*Registration
	names     map[string]*Registration
}

// NewRegistry returns a pointer to a new [Registry] with the given amount of
// minor numbers. A non-positive maxMinors results in [DefaultMaxMinors].
func NewRegistry(maxMinors int) *Registry {
	if maxMinors <= 0 {
		maxMinors = DefaultMaxMinors
	}

	return &Registry{
		maxMinors: maxMinors,
		minors:    make(map[int]*Registration),
		names:     make(map[string]*Registration),
	}
}

// Allocate reserves a minor number and the given name for a new
// [Registration]. The device is not visible to [Registry.Open] until
// [Registration.Bind] succeeds.
func (r *Registry) Allocate(name string) (*Registration, error) {
	if name == "" {
		return nil, fmt.Errorf("(host-alloc) %w", ErrInvalidName)
	}

	r.Lock()
	defer r.Unlock()

	if _, exists := r.names[name]; exists {
		return nil, fmt.Errorf("(host-alloc) %w: %s", ErrNameInUse, name)
	}

	minor := -1
	for i := 0; i < r.maxMinors; i++ {
		if _, taken := r.minors[i]; !taken {
			minor = i

			break
		}
	}

	if minor < 0 {
		return nil, fmt.Errorf("(host-alloc) %w: %d in use", ErrNoMinors, r.maxMinors)
	}

	reg := &Registration{
		registry: r,
		name:     name,
		minor:    minor,
	}

	r.minors[minor] = reg
	r.names[name] = reg

	slog.Debug("Allocated device registration.",
		"device", name,
		"minor", minor,
	)

	return reg, nil
}

// Open opens a published device by name, invoking its
// [FileOperations.Open] handler.
func (r *Registry) Open(name string) (*File, error) {
	r.RLock()
	reg, exists := r.names[name]
	r.RUnlock()

	if !exists {
		return nil, fmt.Errorf("(host-open) %w: %s", ErrNoDevice, name)
	}

	ops, err := reg.enter()
	if err != nil {
		return nil, fmt.Errorf("(host-open) %w", err)
	}
	defer reg.exit()

	f := newFile(reg)

	if err := ops.Open(f); err != nil {
		return nil, fmt.Errorf("(host-open) %w", err)
	}

	return f, nil
}

// Devices returns the names of all currently published devices.
func (r *Registry) Devices() []string {
	r.RLock()
	defer r.RUnlock()

	names := make([]string, 0, len(r.names))
	for name, reg := range r.names {
		if reg.isPublished() {
			names = append(names, name)
		}
	}

	return names
}

// free returns the minor number and name of a [Registration] to the pool.
func (r *Registry) free(reg *Registration) {
	r.Lock()
	defer r.Unlock()

	if r.minors[reg.minor] == reg {
		delete(r.minors, reg.minor)
	}

	if r.names[reg.name] == reg {
		delete(r.names, reg.name)
	}
}

// Registration is a handle on a reserved minor number and device name.
type Registration struct {
	sync.RWMutex
	registry  *Registry
	name      string
	minor     int
	ops       FileOperations
	published bool
	removed   bool
	inFlight  sync.WaitGroup
}

// Name returns the device name of the [Registration].
func (reg *Registration) Name() string {
	return reg.name
}

// Minor returns the minor number of the [Registration].
func (reg *Registration) Minor() int {
	return reg.minor
}

// Bind binds the [FileOperations] to the [Registration] and publishes the
// device, making it available to [Registry.Open].
func (reg *Registration) Bind(ops FileOperations) error {
	reg.Lock()
	defer reg.Unlock()

	if reg.removed {
		return fmt.Errorf("(host-bind) %w: %s", ErrNoDevice, reg.name)
	}

	if reg.ops != nil {
		return fmt.Errorf("(host-bind) %w: %s", ErrAlreadyBound, reg.name)
	}

	reg.ops = ops
	reg.published = true

	slog.Debug("Published device.",
		"device", reg.name,
		"minor", reg.minor,
	)

	return nil
}

// Release returns a [Registration] that was never bound to the pool. It is
// used to unwind a failed device registration.
func (reg *Registration) Release() {
	reg.Lock()
	if reg.removed || reg.ops != nil {
		reg.Unlock()

		return
	}
	reg.removed = true
	reg.Unlock()

	reg.registry.free(reg)
}

// Deregister hides the device: new opens and file calls fail with
// [ErrNoDevice] from now on. Calls that are already in flight are not
// affected, see [Registration.Drain] for waiting on them.
func (reg *Registration) Deregister() error {
	reg.Lock()
	defer reg.Unlock()

	if reg.ops == nil {
		return fmt.Errorf("(host-deregister) %w: %s", ErrNotBound, reg.name)
	}

	if !reg.published {
		return nil
	}

	reg.published = false

	slog.Debug("Unpublished device.",
		"device", reg.name,
		"minor", reg.minor,
	)

	return nil
}

// Drain waits for all in-flight file calls of a deregistered device to
// return, then gives its minor number and name back to the [Registry].
func (reg *Registration) Drain(ctx context.Context) error {
	if reg.isPublished() {
		if err := reg.Deregister(); err != nil {
			return fmt.Errorf("(host-drain) %w", err)
		}
	}

	drained := make(chan struct{})
	go func() {
		reg.inFlight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("(host-drain) %w", ctx.Err())
	}

	reg.Lock()
	alreadyRemoved := reg.removed
	reg.removed = true
	reg.Unlock()

	if !alreadyRemoved {
		reg.registry.free(reg)
	}

	return nil
}

// isPublished reports whether the device is currently published.
func (reg *Registration) isPublished() bool {
	reg.RLock()
	defer reg.RUnlock()

	return reg.published
}

// enter admits a file call on a published device. Every successful enter must
// be paired with an exit.
func (reg *Registration) enter() (FileOperations, error) { //nolint:ireturn
	reg.RLock()
	defer reg.RUnlock()

	if !reg.published {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, reg.name)
	}

	reg.inFlight.Add(1)

	return reg.ops, nil
}

func (reg *Registration) exit() {
	reg.inFlight.Done()
}
