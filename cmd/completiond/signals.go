package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"golang.org/x/sys/unix"
)

const (
	stackTraceBufMax = 1 << 24
)

// setupSignalHandlers cancels the given context on SIGTERM or SIGINT and dumps
// all goroutine stacks to stderr on SIGUSR1. Parked device readers show up in
// such a dump. The returned function stops the signal handling.
func setupSignalHandlers(cancel context.CancelFunc) func() {
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, unix.SIGTERM, unix.SIGINT)

	dumpChan := make(chan os.Signal, 1)
	signal.Notify(dumpChan, unix.SIGUSR1)

	doneChan := make(chan struct{})

	go func() {
		for {
			select {
			case <-doneChan:
				return
			case <-termChan:
				cancel()
			case <-dumpChan:
				buf := make([]byte, stackTraceBufMax)
				stacklen := runtime.Stack(buf, true)
				_, _ = os.Stderr.Write(buf[:stacklen])
			}
		}
	}()

	return func() {
		signal.Stop(termChan)
		signal.Stop(dumpChan)
		close(doneChan)
	}
}
