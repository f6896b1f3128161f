package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrySendThroughChannel(t *testing.T) {
	t.Run("delivers_when_ctx_live", func(t *testing.T) {
		channel := make(chan int, 1)
		ok := TrySendThroughChannel(context.Background(), 42, channel)
		require.True(t, ok)
		require.Equal(t, 42, <-channel)
	})

	t.Run("gives_up_when_ctx_cancelled", func(t *testing.T) {
		channel := make(chan int)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ok := TrySendThroughChannel(ctx, 42, channel)
		require.False(t, ok)
	})
}

func TestNewPoolCancelsOnFirstError(t *testing.T) {
	errBoom := errors.New("boom")

	pool := NewPool(context.Background(), 2)

	var sawCancel atomic.Bool
	pool.Go(func(ctx context.Context) error {
		return errBoom
	})
	pool.Go(func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		return nil
	})

	err := pool.Wait()
	require.ErrorIs(t, err, errBoom)
	require.True(t, sawCancel.Load())
}
