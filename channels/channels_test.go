package channels_test

import (
	"testing"

	"github.com/amp-labs/amp-dispatch/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReportsQueueLength(t *testing.T) {
	t.Parallel()

	w, r, count := channels.Create[int](4)

	assert.Equal(t, 0, count())

	w <- 1
	w <- 2

	assert.Equal(t, 2, count())

	got := <-r
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, count())
}

func TestCreatePreservesOrder(t *testing.T) {
	t.Parallel()

	w, r, _ := channels.Create[int](8)

	for i := 0; i < 8; i++ {
		w <- i
	}

	for i := 0; i < 8; i++ {
		assert.Equal(t, i, <-r)
	}
}

func TestCloseIgnorePanic(t *testing.T) {
	t.Parallel()

	w, r, _ := channels.Create[int](1)

	channels.CloseIgnorePanic(w)

	_, ok := <-r
	require.False(t, ok)

	// Closing again must not panic.
	channels.CloseIgnorePanic(w)
}

func TestCloseIgnorePanicNil(t *testing.T) {
	t.Parallel()

	channels.CloseIgnorePanic[int](nil)
}
