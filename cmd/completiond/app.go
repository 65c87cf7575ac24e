package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/desertwitch/completion/internal/cell"
	"github.com/desertwitch/completion/internal/configuration"
	"github.com/desertwitch/completion/internal/device"
	"github.com/desertwitch/completion/internal/host"
	"golang.org/x/sync/errgroup"
)

const (
	// parkPollInterval is the interval at which the scenario checks whether
	// all readers are parked.
	parkPollInterval = 10 * time.Millisecond

	// teardownTimeout bounds the wait for in-flight calls on teardown.
	teardownTimeout = 5 * time.Second
)

var (
	// ErrUnexpectedResult is an error that occurs when a device call returns
	// a byte count other than the expected one.
	ErrUnexpectedResult = errors.New("unexpected device result")

	// ErrNotRegistered is an error that occurs when the device is used before
	// [App.Register] succeeded.
	ErrNotRegistered = errors.New("device not registered")
)

// App wires the completion device into a [host.Registry] and drives it.
type App struct {
	config   *configuration.AppConfiguration
	registry *host.Registry
	cell     *cell.Cell

	mu     sync.RWMutex
	device *device.Device

	readers sync.WaitGroup
}

// NewApp returns a pointer to a new [App].
func NewApp(config *configuration.AppConfiguration, registry *host.Registry, c *cell.Cell) *App {
	return &App{
		config:   config,
		registry: registry,
		cell:     c,
	}
}

// Register registers the completion device with the [host.Registry].
func (app *App) Register() error {
	dev, err := device.Register(app.registry, app.config.DeviceName, app.cell)
	if err != nil {
		return fmt.Errorf("(app-register) %w", err)
	}

	app.mu.Lock()
	app.device = dev
	app.mu.Unlock()

	return nil
}

// Teardown unregisters the completion device and waits for all readers
// spawned by [App.SpawnReader] to return.
func (app *App) Teardown(ctx context.Context) error {
	app.mu.Lock()
	dev := app.device
	app.device = nil
	app.mu.Unlock()

	if dev == nil {
		return fmt.Errorf("(app-teardown) %w", ErrNotRegistered)
	}

	ctx, cancel := context.WithTimeout(ctx, teardownTimeout)
	defer cancel()

	if err := dev.Teardown(ctx); err != nil {
		return fmt.Errorf("(app-teardown) %w", err)
	}

	app.readers.Wait()

	return nil
}

// Stats returns the [device.Stats] of the registered device.
func (app *App) Stats() device.Stats {
	app.mu.RLock()
	dev := app.device
	app.mu.RUnlock()

	if dev == nil {
		return device.Stats{}
	}

	return dev.Stats()
}

// SpawnReader opens the device and reads from it in a new goroutine. The
// outcome of the read is only logged.
func (app *App) SpawnReader() {
	f, err := app.registry.Open(app.config.DeviceName)
	if err != nil {
		slog.Error("Failed to open device for reading.", "err", err)

		return
	}

	app.readers.Add(1)
	go func() {
		defer app.readers.Done()
		defer f.Close()

		start := time.Now()

		if _, err := f.Read(make([]byte, 1)); err != nil {
			slog.Warn("Reader returned with an error.",
				"file", f.ID(),
				"err", err,
			)

			return
		}

		slog.Info("Reader woken.",
			"file", f.ID(),
			"waited", time.Since(start).Round(time.Millisecond),
		)
	}()
}

// Trigger opens the device and writes a single byte to it.
func (app *App) Trigger() {
	if _, err := app.write([]byte{0x41}); err != nil {
		slog.Error("Failed to write to device.", "err", err)
	}
}

// write opens the device, writes the given data and closes it again.
func (app *App) write(data []byte) (int, error) {
	f, err := app.registry.Open(app.config.DeviceName)
	if err != nil {
		return 0, fmt.Errorf("(app-write) %w", err)
	}
	defer f.Close()

	n, err := f.Write(data)
	if err != nil {
		return n, fmt.Errorf("(app-write) %w", err)
	}

	if n != len(data) {
		return n, fmt.Errorf("(app-write) %w: wrote %d of %d bytes", ErrUnexpectedResult, n, len(data))
	}

	return n, nil
}

// RunScenario parks the configured amount of readers on the device, wakes
// them all with a single one-byte write and finally checks that a write
// with no readers present completes without blocking.
func (app *App) RunScenario(ctx context.Context) error {
	if !app.Stats().Registered {
		return fmt.Errorf("(app-scenario) %w", ErrNotRegistered)
	}

	var g errgroup.Group

	for i := 0; i < app.config.Readers; i++ {
		i := i
		f, err := app.registry.Open(app.config.DeviceName)
		if err != nil {
			return fmt.Errorf("(app-scenario) %w", err)
		}

		g.Go(func() error {
			defer f.Close()

			n, err := f.Read(make([]byte, 1))
			if err != nil {
				return fmt.Errorf("reader %d: %w", i, err)
			}

			if n != 0 {
				return fmt.Errorf("reader %d: %w: read %d bytes", i, ErrUnexpectedResult, n)
			}

			slog.Info("Reader woken.", "reader", i, "file", f.ID())

			return nil
		})
	}

	if err := app.waitParked(ctx, app.config.Readers); err != nil {
		return fmt.Errorf("(app-scenario) %w", err)
	}

	slog.Info("All readers parked, signaling completion...", "readers", app.config.Readers)

	if _, err := app.write([]byte{0x41}); err != nil {
		return fmt.Errorf("(app-scenario) %w", err)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("(app-scenario) %w", err)
	}

	if _, err := app.write([]byte{}); err != nil {
		return fmt.Errorf("(app-scenario) %w", err)
	}

	stats := app.Stats()
	slog.Info("Scenario completed.",
		"reads", stats.Reads,
		"wakeups", stats.Wakeups,
		"writes", stats.Writes,
		"signals", stats.Signals,
	)

	return nil
}

// waitParked blocks until n readers are parked on the device. A done
// context always wins over a reached count.
func (app *App) waitParked(ctx context.Context, n int) error {
	ticker := time.NewTicker(parkPollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if app.Stats().Parked >= n {
			return nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}
