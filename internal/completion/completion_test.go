package completion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// waitAsync runs [Completion.Wait] in a goroutine and returns its result
// channel.
func waitAsync(c *Completion) <-chan error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Wait()
	}()

	return errChan
}

// waitForWaiters blocks until n waiters are parked on the completion.
func waitForWaiters(t *testing.T, c *Completion, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.Waiters() == n
	}, testTimeout, time.Millisecond, "expected %d parked waiters", n)
}

// TestNew_Success tests the factory function.
func TestNew_Success(t *testing.T) {
	t.Parallel()

	c := New()
	require.NotNil(t, c)
	assert.False(t, c.Done())
	assert.Equal(t, 0, c.Waiters())
	assert.Equal(t, uint64(0), c.Signals())
}

// TestWait_Success_AfterSignal tests that a wait after a signal returns
// immediately.
func TestWait_Success_AfterSignal(t *testing.T) {
	t.Parallel()

	c := New()
	c.Signal()

	select {
	case err := <-waitAsync(c):
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("wait after signal should not block")
	}
}

// TestWait_Success_Blocked tests that a parked waiter is woken by a signal.
func TestWait_Success_Blocked(t *testing.T) {
	t.Parallel()

	c := New()
	errChan := waitAsync(c)
	waitForWaiters(t, c, 1)

	select {
	case <-errChan:
		t.Fatal("wait should block before signal")
	default:
	}

	c.Signal()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("waiter was not woken by signal")
	}
	assert.True(t, c.Done())
}

// TestSignal_Success_Broadcast tests that one signal wakes every parked
// waiter.
func TestSignal_Success_Broadcast(t *testing.T) {
	t.Parallel()

	const waiters = 8

	c := New()
	results := make([]<-chan error, 0, waiters)
	for loopIdx := 0; loopIdx < waiters; loopIdx++ {
		results = append(results, waitAsync(c))
	}
	waitForWaiters(t, c, waiters)

	c.Signal()

	for _, errChan := range results {
		select {
		case err := <-errChan:
			require.NoError(t, err)
		case <-time.After(testTimeout):
			t.Fatal("not all waiters were woken by a single signal")
		}
	}
	assert.Equal(t, uint64(1), c.Signals())
}

// TestSignal_Success_Idempotent tests that repeated signals count once.
func TestSignal_Success_Idempotent(t *testing.T) {
	t.Parallel()

	c := New()
	c.Signal()
	c.Signal()
	c.Signal()

	assert.True(t, c.Done())
	assert.Equal(t, uint64(1), c.Signals())
}

// TestSignal_Success_NoMissedWakeup races many waiters against a signal and
// checks that none of them stays parked.
func TestSignal_Success_NoMissedWakeup(t *testing.T) {
	t.Parallel()

	for loopIdx := 0; loopIdx < 200; loopIdx++ {
		c := New()

		var wg sync.WaitGroup
		start := make(chan struct{})

		for loopIdx := 0; loopIdx < 4; loopIdx++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				assert.NoError(t, c.Wait())
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			c.Signal()
		}()

		close(start)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(testTimeout):
			t.Fatal("a waiter missed its wakeup")
		}
	}
}

// TestReinit_Success tests that a re-armed completion blocks again.
func TestReinit_Success(t *testing.T) {
	t.Parallel()

	c := New()
	c.Signal()
	c.Reinit()
	assert.False(t, c.Done())

	errChan := waitAsync(c)
	waitForWaiters(t, c, 1)

	c.Signal()
	require.NoError(t, <-errChan)
	assert.Equal(t, uint64(2), c.Signals())
}

// TestReinit_Success_Armed tests that re-arming an armed completion is a
// no-op.
func TestReinit_Success_Armed(t *testing.T) {
	t.Parallel()

	c := New()
	c.Reinit()

	assert.False(t, c.Done())
	assert.Equal(t, uint64(0), c.Signals())
}

// TestDestroy_Success_WakesWaiters tests that parked waiters are released
// with an error on destruction.
func TestDestroy_Success_WakesWaiters(t *testing.T) {
	t.Parallel()

	c := New()
	first := waitAsync(c)
	second := waitAsync(c)
	waitForWaiters(t, c, 2)

	c.Destroy()

	require.ErrorIs(t, <-first, ErrDestroyed)
	require.ErrorIs(t, <-second, ErrDestroyed)
}

// TestDestroy_Fail_LaterWait tests that waits on a destroyed completion fail
// without blocking and that signals are ignored.
func TestDestroy_Fail_LaterWait(t *testing.T) {
	t.Parallel()

	c := New()
	c.Destroy()
	c.Destroy()
	c.Signal()

	require.ErrorIs(t, c.Wait(), ErrDestroyed)
	require.ErrorIs(t, c.WaitContext(testContext(t)), ErrDestroyed)
	assert.False(t, c.Done())
	assert.Equal(t, uint64(0), c.Signals())
}

// TestWaitContext_Success tests the context-aware wait on a signal.
func TestWaitContext_Success(t *testing.T) {
	t.Parallel()

	c := New()
	errChan := make(chan error, 1)
	go func() {
		errChan <- c.WaitContext(testContext(t))
	}()
	waitForWaiters(t, c, 1)

	c.Signal()
	require.NoError(t, <-errChan)
}

// TestWaitContext_Fail_CtxCancel tests that a canceled context releases the
// waiter without signaling the completion.
func TestWaitContext_Fail_CtxCancel(t *testing.T) {
	t.Parallel()

	c := New()
	ctx, cancel := context.WithCancel(testContext(t))

	errChan := make(chan error, 1)
	go func() {
		errChan <- c.WaitContext(ctx)
	}()
	waitForWaiters(t, c, 1)

	cancel()

	require.ErrorIs(t, <-errChan, context.Canceled)
	assert.False(t, c.Done())
	waitForWaiters(t, c, 0)
}
