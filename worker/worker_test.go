package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type empty struct{}

var errProcessing = errors.New("processing failed")

func TestWorkerPanicIsReturnedToCaller(t *testing.T) {
	t.Parallel()

	w := New[empty, empty](func(ref *Ref[empty, empty]) Processor[empty, empty] {
		return NewProcessor[empty, empty](func(ctx context.Context, m Message[empty, empty]) error {
			panic("test panic")
		})
	})

	ref := w.Run(testContext(t), "test", 1)

	_, err := ref.RequestCtx(testContext(t), empty{})

	require.Error(t, err)
	require.ErrorContains(t, err, "test panic")
}

func TestWorkerProcessesInFIFOOrder(t *testing.T) {
	t.Parallel()

	const total = 100

	received := make(chan int, total)

	w := New[int, empty](func(ref *Ref[int, empty]) Processor[int, empty] {
		return NewProcessor[int, empty](func(ctx context.Context, m Message[int, empty]) error {
			received <- m.Request

			return nil
		})
	})

	ref := w.Run(testContext(t), "fifo", total)
	defer ref.Stop()

	for i := 0; i < total; i++ {
		require.NoError(t, ref.SendCtx(testContext(t), Message[int, empty]{Request: i}))
	}

	for i := 0; i < total; i++ {
		assert.Equal(t, i, <-received)
	}
}

func TestWorkerRestartsAfterFailure(t *testing.T) {
	t.Parallel()

	factoryCalls := atomic.NewInt32(0)

	w := New[string, string](func(ref *Ref[string, string]) Processor[string, string] {
		factoryCalls.Inc()

		return SimpleProcessor(func(ctx context.Context, req string) (string, error) {
			if req == "fail" {
				return "", errProcessing
			}

			return "ok:" + req, nil
		})
	}, WithRestartPolicy[string, string](RestartPolicy{MaxRestarts: 2, Window: time.Minute}))

	ref := w.Run(testContext(t), "restarting", 8)
	defer ref.Stop()

	// First failure consumes one restart; the worker keeps going.
	_, err := ref.RequestCtx(testContext(t), "fail")
	require.ErrorIs(t, err, errProcessing)

	resp, err := ref.RequestCtx(testContext(t), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok:hello", resp)

	// The processor was rebuilt by supervision.
	assert.Equal(t, int32(2), factoryCalls.Load())
}

func TestWorkerStopsWhenRestartBudgetExhausted(t *testing.T) {
	t.Parallel()

	w := New[empty, empty](func(ref *Ref[empty, empty]) Processor[empty, empty] {
		return NewProcessor[empty, empty](func(ctx context.Context, m Message[empty, empty]) error {
			return errProcessing
		})
	}, WithRestartPolicy[empty, empty](RestartPolicy{MaxRestarts: 1, Window: time.Minute}))

	ref := w.Run(testContext(t), "exhausted", 8)

	// First failure restarts, second exhausts the budget and stops the worker.
	require.NoError(t, ref.SendCtx(testContext(t), Message[empty, empty]{}))
	require.NoError(t, ref.SendCtx(testContext(t), Message[empty, empty]{}))

	ref.Wait()

	assert.False(t, ref.Alive())

	err := ref.SendCtx(testContext(t), Message[empty, empty]{})
	require.ErrorIs(t, err, ErrDeadWorker)
}

func TestStopDrainsQueuedMessages(t *testing.T) {
	t.Parallel()

	const total = 10

	processed := atomic.NewInt32(0)

	w := New[int, empty](func(ref *Ref[int, empty]) Processor[int, empty] {
		return NewProcessor[int, empty](func(ctx context.Context, m Message[int, empty]) error {
			processed.Inc()

			return nil
		})
	})

	ref := w.Run(testContext(t), "draining", total)

	for i := 0; i < total; i++ {
		require.NoError(t, ref.SendCtx(testContext(t), Message[int, empty]{Request: i}))
	}

	ref.Stop()
	ref.Wait()

	// Stop closes intake but lets queued messages finish.
	assert.Equal(t, int32(total), processed.Load())
}

func TestCancelDiscardsQueuedMessages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	blocked := make(chan struct{})
	release := make(chan struct{})

	w := New[int, empty](func(ref *Ref[int, empty]) Processor[int, empty] {
		return NewProcessor[int, empty](func(pctx context.Context, m Message[int, empty]) error {
			close(blocked)
			<-release

			return nil
		})
	})

	ref := w.Run(ctx, "forced", 8)

	require.NoError(t, ref.SendCtx(context.Background(), Message[int, empty]{Request: 1}))
	<-blocked

	cancel()
	close(release)
	ref.Wait()

	assert.False(t, ref.Alive())
}

func TestSendToDeadWorker(t *testing.T) {
	t.Parallel()

	w := New[empty, empty](func(ref *Ref[empty, empty]) Processor[empty, empty] {
		return NewProcessor[empty, empty](func(ctx context.Context, m Message[empty, empty]) error {
			return nil
		})
	})

	ref := w.Run(testContext(t), "dead", 1)
	ref.Stop()
	ref.Wait()

	err := ref.SendCtx(testContext(t), Message[empty, empty]{})
	require.ErrorIs(t, err, ErrDeadWorker)

	_, err = ref.RequestCtx(testContext(t), empty{})
	require.ErrorIs(t, err, ErrDeadWorker)
}

func TestRestartWindowPrunesOldEntries(t *testing.T) {
	t.Parallel()

	rw := newRestartWindow(RestartPolicy{MaxRestarts: 2, Window: time.Minute})

	base := time.Now()

	assert.True(t, rw.Allow(base))
	assert.True(t, rw.Allow(base.Add(time.Second)))
	assert.False(t, rw.Allow(base.Add(2*time.Second)))

	// Outside the window, old restarts no longer count.
	assert.True(t, rw.Allow(base.Add(2*time.Minute)))
}

func TestRestartWindowDisabled(t *testing.T) {
	t.Parallel()

	rw := newRestartWindow(RestartPolicy{})

	assert.False(t, rw.Allow(time.Now()))
}
