package lazy_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/amp-labs/amp-dispatch/lazy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var errInit = errors.New("init failed")

func TestOfInitializesOnce(t *testing.T) {
	t.Parallel()

	calls := atomic.NewInt32(0)

	val := lazy.New(func() int {
		calls.Inc()

		return 42
	})

	assert.False(t, val.Initialized())
	assert.Equal(t, 42, val.Get())
	assert.Equal(t, 42, val.Get())
	assert.True(t, val.Initialized())
	assert.Equal(t, int32(1), calls.Load())
}

func TestOfConcurrentGet(t *testing.T) {
	t.Parallel()

	calls := atomic.NewInt32(0)

	val := lazy.New(func() string {
		calls.Inc()

		return "ready"
	})

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.Equal(t, "ready", val.Get())
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestOfSet(t *testing.T) {
	t.Parallel()

	val := lazy.New(func() int { return 1 })
	val.Set(7)

	assert.Equal(t, 7, val.Get())
}

func TestOfErrMemoizesSuccess(t *testing.T) {
	t.Parallel()

	calls := atomic.NewInt32(0)

	val := lazy.NewErr(func() (int, error) {
		calls.Inc()

		return 9, nil
	})

	got, err := val.Get()
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	got, err = val.Get()
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	assert.Equal(t, int32(1), calls.Load())
}

func TestOfErrRetriesAfterError(t *testing.T) {
	t.Parallel()

	calls := atomic.NewInt32(0)

	val := lazy.NewErr(func() (int, error) {
		if calls.Inc() == 1 {
			return 0, errInit
		}

		return 3, nil
	})

	_, err := val.Get()
	require.ErrorIs(t, err, errInit)
	assert.False(t, val.Initialized())

	// Errors are not memoized: the initializer runs again.
	got, err := val.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.True(t, val.Initialized())
}
