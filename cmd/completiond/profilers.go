package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/pprof"
)

// profileKind selects what a [profiler] records.
type profileKind int

const (
	profileCPU profileKind = iota
	profileAllocs
)

// profiler writes a pprof profile to a file. A CPU profile covers the time
// from start until [profiler.Stop]; an allocs profile is written on stop.
//
//nolint:containedctx
type profiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// startProfiler returns a pointer to a running [profiler]. An empty path
// yields a profiler that records nothing, but still needs to be stopped.
func startProfiler(ctx context.Context, kind profileKind, path string) *profiler {
	prof := &profiler{doneChan: make(chan struct{})}
	prof.ctx, prof.cancel = context.WithCancel(ctx)

	go prof.run(kind, path)

	return prof
}

func (prof *profiler) run(kind profileKind, path string) {
	defer close(prof.doneChan)

	if path == "" {
		return
	}

	if kind == profileAllocs {
		<-prof.ctx.Done()
	}

	f, err := os.Create(path)
	if err != nil {
		slog.Error("Could not create profile.", "path", path, "err", err)

		return
	}
	defer f.Close()

	switch kind {
	case profileCPU:
		if err := pprof.StartCPUProfile(f); err != nil {
			slog.Error("Could not start cpu profile.", "err", err)

			return
		}
		defer pprof.StopCPUProfile()

		<-prof.ctx.Done()

	case profileAllocs:
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			slog.Error("Could not write allocs profile.", "err", err)
		}
	}
}

// Stop ends the profiling and waits for the profile to be written.
func (prof *profiler) Stop() {
	prof.cancel()
	<-prof.doneChan
}
