package cell

import (
	"errors"
	"testing"
	"time"

	"github.com/desertwitch/completion/internal/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTestAlloc = errors.New("out of memory")

// failingFactory is a [Factory] that never succeeds.
func failingFactory() (*completion.Completion, error) {
	return nil, errTestAlloc
}

// TestNew_Success tests the factory function.
func TestNew_Success(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	require.NotNil(t, c)
	assert.False(t, c.Initialized())
	assert.Equal(t, Stats{}, c.Stats())
}

// TestGlobal_Success tests that the process-wide cell is a singleton.
func TestGlobal_Success(t *testing.T) {
	t.Parallel()

	require.NotNil(t, Global())
	assert.Same(t, Global(), Global())
}

// TestInitialize_Success tests a first initialization.
func TestInitialize_Success(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	require.NoError(t, c.Initialize())
	assert.True(t, c.Initialized())

	stats := c.Stats()
	assert.True(t, stats.Initialized)
	assert.False(t, stats.Done)
}

// TestInitialize_Fail_Twice tests that a second initialization fails and
// keeps the existing object.
func TestInitialize_Fail_Twice(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	require.NoError(t, c.Initialize())

	before, err := c.Handle()
	require.NoError(t, err)
	before.Signal()

	err = c.Initialize()
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	after, err := c.Handle()
	require.NoError(t, err)
	assert.Same(t, before, after, "existing object must not be replaced")
	assert.True(t, c.Stats().Done, "existing object state must be kept")
}

// TestInitialize_Fail_Allocation tests that a failing factory surfaces as an
// allocation error and leaves the cell empty.
func TestInitialize_Fail_Allocation(t *testing.T) {
	t.Parallel()

	c := New(failingFactory)
	err := c.Initialize()

	require.ErrorIs(t, err, ErrAllocation)
	require.ErrorIs(t, err, errTestAlloc)
	assert.False(t, c.Initialized())
}

// TestInitialize_Fail_NilObject tests that a factory returning no object is
// treated as an allocation failure.
func TestInitialize_Fail_NilObject(t *testing.T) {
	t.Parallel()

	c := New(func() (*completion.Completion, error) { return nil, nil })

	require.ErrorIs(t, c.Initialize(), ErrAllocation)
	assert.False(t, c.Initialized())
}

// TestHandle_Fail_NotInitialized tests handle access on an empty cell.
func TestHandle_Fail_NotInitialized(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	h, err := c.Handle()

	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Nil(t, h)
}

// TestWithObject_Success_LockReleased tests that fn runs without the cell
// lock held, so a blocked waiter does not starve a signaler.
func TestWithObject_Success_LockReleased(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	require.NoError(t, c.Initialize())

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- c.WithObject(func(h completion.Handle) error {
			return h.Wait()
		})
	}()

	require.Eventually(t, func() bool {
		return c.Stats().Waiters == 1
	}, 2*time.Second, time.Millisecond)

	// The waiter is parked inside fn; the lock must still be obtainable.
	require.True(t, c.TryLock(), "lock must not be held across a blocking call")
	c.Unlock()

	require.NoError(t, c.WithObject(func(h completion.Handle) error {
		h.Signal()

		return nil
	}))
	require.NoError(t, <-waitDone)
}

// TestWithObject_Fail_NotInitialized tests that fn is never invoked on an
// empty cell.
func TestWithObject_Fail_NotInitialized(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	called := false

	err := c.WithObject(func(completion.Handle) error {
		called = true

		return nil
	})

	require.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, called)
}

// TestTeardown_Success tests that teardown empties the cell, wakes parked
// waiters and allows a fresh initialization.
func TestTeardown_Success(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	require.NoError(t, c.Initialize())

	h, err := c.Handle()
	require.NoError(t, err)

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- h.Wait()
	}()

	require.Eventually(t, func() bool {
		return c.Stats().Waiters == 1
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, c.Teardown())
	require.ErrorIs(t, <-waitDone, completion.ErrDestroyed)
	assert.False(t, c.Initialized())

	require.NoError(t, c.Initialize())
	assert.True(t, c.Initialized())
}

// TestTeardown_Fail_NotInitialized tests teardown of an empty cell.
func TestTeardown_Fail_NotInitialized(t *testing.T) {
	t.Parallel()

	c := New(NewCompletion)
	require.ErrorIs(t, c.Teardown(), ErrNotInitialized)
}
