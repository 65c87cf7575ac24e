// Package ui implements a command-line monitor for the completion device
// using [tea].
package ui

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertwitch/completion/internal/device"
)

type deviceProvider interface {
	Stats() device.Stats
}

type triggerProvider interface {
	SpawnReader()
	Trigger()
}

// Handler is the principal implementation of a user interface [Handler].
type Handler struct {
	device  deviceProvider
	trigger triggerProvider
	program *tea.Program

	LogWriter *TeaLogWriter

	Initialized atomic.Bool
	Failed      atomic.Bool
}

// NewHandler returns a pointer to a new user interface [Handler]. Canceling
// the given context stops the user interface; the given cancel function is
// invoked when the user requests to quit the whole program.
func NewHandler(ctx context.Context, cancel context.CancelFunc, dev deviceProvider, trigger triggerProvider) *Handler {
	handler := &Handler{
		device:  dev,
		trigger: trigger,
	}

	model := NewTeaModel(handler, cancel)
	handler.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	handler.LogWriter = NewTeaLogWriter(handler.program)

	return handler
}

// Launch starts the command-line user interface (the [tea.Program]).
func (uiHandler *Handler) Launch() error {
	defer uiHandler.LogWriter.Stop()

	if _, err := uiHandler.program.Run(); err != nil {
		uiHandler.Failed.Store(true)

		return fmt.Errorf("(ui) %w", err)
	}

	return nil
}
