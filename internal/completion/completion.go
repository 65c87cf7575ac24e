// Package completion implements a broadcast wait/signal primitive.
//
// A [Completion] starts out armed. Any number of goroutines can block in
// [Completion.Wait] until [Completion.Signal] is called, which wakes all of
// them at once. The completion then stays done, so later waiters return
// immediately until it is re-armed with [Completion.Reinit].
package completion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle is the capability borrowed from a [Completion]. Waiting and
// signaling are the only operations permitted on it.
type Handle interface {
	Wait() error
	Signal()
}

// Completion is the principal implementation of a [Handle].
//
// A Completion must not be copied after construction; it is only ever handed
// out by pointer.
type Completion struct {
	mu        sync.Mutex
	done      bool
	destroyed bool
	doneChan  chan struct{}
	deadChan  chan struct{}

	waiters atomic.Int64
	signals atomic.Uint64
}

// New returns a pointer to a new, armed [Completion].
func New() *Completion {
	return &Completion{
		doneChan: make(chan struct{}),
		deadChan: make(chan struct{}),
	}
}

// arm returns the channels a waiter needs to park on. It is the waiter's half
// of the wakeup protocol: the channel is captured under the same lock that
// [Completion.Signal] closes it under, so a signal can never fall between
// the check and the park.
func (c *Completion) arm() (<-chan struct{}, <-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, nil, ErrDestroyed
	}

	return c.doneChan, c.deadChan, nil
}

// Wait blocks until the [Completion] is signaled. It returns immediately if
// the [Completion] is already done, or [ErrDestroyed] if it was destroyed.
func (c *Completion) Wait() error {
	doneChan, deadChan, err := c.arm()
	if err != nil {
		return err
	}

	c.waiters.Add(1)
	defer c.waiters.Add(-1)

	select {
	case <-doneChan:
		return nil
	case <-deadChan:
		return ErrDestroyed
	}
}

// WaitContext is like [Completion.Wait], but also returns when the given
// context is done.
func (c *Completion) WaitContext(ctx context.Context) error {
	doneChan, deadChan, err := c.arm()
	if err != nil {
		return err
	}

	c.waiters.Add(1)
	defer c.waiters.Add(-1)

	select {
	case <-doneChan:
		return nil
	case <-deadChan:
		return ErrDestroyed
	case <-ctx.Done():
		return fmt.Errorf("(completion-wait) %w", ctx.Err())
	}
}

// Signal marks the [Completion] as done and wakes all current waiters.
// Signaling a done or destroyed [Completion] has no effect.
func (c *Completion) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || c.done {
		return
	}

	c.done = true
	c.signals.Add(1)
	close(c.doneChan)
}

// Reinit re-arms a done [Completion], so that following waiters block again.
// Waiters woken by the previous signal are not affected.
func (c *Completion) Reinit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed || !c.done {
		return
	}

	c.done = false
	c.doneChan = make(chan struct{})
}

// Destroy wakes all parked waiters with [ErrDestroyed]. Any later
// [Completion.Wait] fails immediately and [Completion.Signal] becomes a no-op.
func (c *Completion) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}

	c.destroyed = true
	close(c.deadChan)
}

// Done returns whether the [Completion] is currently signaled.
func (c *Completion) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// Waiters returns the number of goroutines currently parked in a wait.
func (c *Completion) Waiters() int {
	return int(c.waiters.Load())
}

// Signals returns how many times the [Completion] went from armed to done.
func (c *Completion) Signals() uint64 {
	return c.signals.Load()
}
