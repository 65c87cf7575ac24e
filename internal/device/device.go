// Package device implements the completion device: file operations that
// translate device reads into waits and device writes into signals on a
// shared [cell.Cell].
//
// A read blocks until the next write. A write wakes every blocked reader and
// leaves the completion done, so reads that start after a write return
// immediately. No per-file state is kept; everything lives in the cell.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/desertwitch/completion/internal/cell"
	"github.com/desertwitch/completion/internal/completion"
	"github.com/desertwitch/completion/internal/host"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

// Stats is a snapshot of a [Device]'s activity.
type Stats struct {
	Name        string
	Minor       int
	Registered  bool
	Opens       uint64
	Reads       uint64
	Writes      uint64
	Wakeups     uint64
	Failures    uint64
	BytesIn     uint64
	Parked      int
	Signals     uint64
	Done        bool
	Initialized bool
}

// Device is the principal implementation of the completion device's
// [host.FileOperations].
type Device struct {
	cell *cell.Cell
	reg  atomic.Pointer[host.Registration]

	opens    atomic.Uint64
	reads    atomic.Uint64
	writes   atomic.Uint64
	wakeups  atomic.Uint64
	failures atomic.Uint64
	bytesIn  atomic.Uint64
}

// New returns a pointer to a new [Device] operating on the given [cell.Cell].
// The device is not registered; see [Register].
func New(c *cell.Cell) *Device {
	return &Device{
		cell: c,
	}
}

// Register allocates a registration handle from the [host.Registry],
// initializes the [cell.Cell] and binds the file operations. The first
// failing step aborts the registration and its error is returned; the device
// is never reachable through the [host.Registry] in that case.
func Register(registry *host.Registry, name string, c *cell.Cell) (*Device, error) {
	reg, err := registry.Allocate(name)
	if err != nil {
		return nil, fmt.Errorf("(device-register) %w", err)
	}

	if err := c.Initialize(); err != nil {
		reg.Release()

		return nil, fmt.Errorf("(device-register) %w", err)
	}

	dev := New(c)

	if err := reg.Bind(dev); err != nil {
		reg.Release()
		_ = c.Teardown()

		return nil, fmt.Errorf("(device-register) %w", err)
	}

	dev.reg.Store(reg)

	slog.Info("Registered completion device.",
		"device", name,
		"minor", reg.Minor(),
	)

	return dev, nil
}

// Open acknowledges the opening of a [host.File]. It always succeeds.
func (d *Device) Open(f *host.File) error {
	d.opens.Add(1)

	slog.Debug("Device opened.",
		"device", f.Name(),
		"file", f.ID(),
	)

	return nil
}

// Read blocks until the completion is signaled by a write, then returns zero
// bytes. The cell lock is released before blocking.
func (d *Device) Read(f *host.File, _ []byte, _ int64) (int, error) {
	d.reads.Add(1)

	slog.Debug("Device read, waiting for completion...",
		"device", f.Name(),
		"file", f.ID(),
	)

	err := d.cell.WithObject(func(h completion.Handle) error {
		return h.Wait()
	})
	if err != nil {
		d.failures.Add(1)

		return 0, fmt.Errorf("(device-read) %w: %w", ErrIO, err)
	}

	d.wakeups.Add(1)

	slog.Debug("Device read woken.",
		"device", f.Name(),
		"file", f.ID(),
	)

	return 0, nil
}

// Write signals the completion, waking all blocked readers, and reports the
// whole buffer as accepted. The written bytes are not inspected.
func (d *Device) Write(f *host.File, buf []byte, _ int64) (int, error) {
	d.writes.Add(1)

	slog.Debug("Device write, signaling completion...",
		"device", f.Name(),
		"file", f.ID(),
		"size", humanize.Bytes(uint64(len(buf))),
	)

	err := d.cell.WithObject(func(h completion.Handle) error {
		h.Signal()

		return nil
	})
	if err != nil {
		d.failures.Add(1)

		return 0, fmt.Errorf("(device-write) %w: %w", ErrIO, err)
	}

	d.bytesIn.Add(uint64(len(buf)))

	return len(buf), nil
}

// Release is called when a [host.File] is closed. No per-file state exists.
func (d *Device) Release(f *host.File) {
	slog.Debug("Device released.",
		"device", f.Name(),
		"file", f.ID(),
	)
}

// Teardown unregisters the device. It hides the device from new calls, tears
// down the completion (any still blocked readers fail with [ErrIO]) and
// waits for in-flight calls to return, as long as the context allows.
func (d *Device) Teardown(ctx context.Context) error {
	reg := d.reg.Swap(nil)
	if reg == nil {
		return fmt.Errorf("(device-teardown) %w", host.ErrNotBound)
	}

	slog.Info("Tearing down completion device.",
		"device", reg.Name(),
		"parked", d.cell.Stats().Waiters,
	)

	var merr *multierror.Error

	if err := reg.Deregister(); err != nil {
		merr = multierror.Append(merr, err)
	}

	if err := d.cell.Teardown(); err != nil {
		merr = multierror.Append(merr, err)
	}

	if err := reg.Drain(ctx); err != nil {
		merr = multierror.Append(merr, err)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return fmt.Errorf("(device-teardown) %w", err)
	}

	return nil
}

// Stats returns a [Stats] snapshot of the [Device].
func (d *Device) Stats() Stats {
	cellStats := d.cell.Stats()

	stats := Stats{
		Opens:       d.opens.Load(),
		Reads:       d.reads.Load(),
		Writes:      d.writes.Load(),
		Wakeups:     d.wakeups.Load(),
		Failures:    d.failures.Load(),
		BytesIn:     d.bytesIn.Load(),
		Parked:      cellStats.Waiters,
		Signals:     cellStats.Signals,
		Done:        cellStats.Done,
		Initialized: cellStats.Initialized,
	}

	if reg := d.reg.Load(); reg != nil {
		stats.Name = reg.Name()
		stats.Minor = reg.Minor()
		stats.Registered = true
	}

	return stats
}
