package workgroup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoundGroupResolvesResults(t *testing.T) {
	ctx := context.Background()

	g := Bound(2, func(j int) (int, error) {
		return j * j, nil
	})
	defer g.Close()

	hnd1 := g.Push(ctx, 3)
	hnd2 := g.Push(ctx, 4)

	res := <-hnd1
	require.NoError(t, res.Err)
	require.Equal(t, 9, res.Value)

	res = <-hnd2
	require.NoError(t, res.Err)
	require.Equal(t, 16, res.Value)
}

func TestBoundGroupPushToClosedGroup(t *testing.T) {
	var i atomic.Int32

	ctx := context.Background()

	g := Bound(2, func(j int32) (int32, error) {
		i.Add(j)
		return j, nil
	})

	hnd1 := g.Push(ctx, 1)
	g.Close()
	hnd2 := g.Push(ctx, 2)

	res := <-hnd1
	require.NoError(t, res.Err)
	res = <-hnd2
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Equal(t, int32(1), i.Load())
}

func TestBoundGroupPushToCanceledContext(t *testing.T) {
	var i atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	g := Bound(2, func(j int32) (int32, error) {
		i.Add(j)
		return j, nil
	})
	defer g.Close()

	hnd1 := g.Push(ctx, 1)
	cancel()
	hnd2 := g.Push(ctx, 2)

	res := <-hnd1
	require.NoError(t, res.Err)
	res = <-hnd2
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Equal(t, int32(1), i.Load())
}

func TestBoundGroupLimitsConcurrency(t *testing.T) {
	var running atomic.Int32
	var peak atomic.Int32

	ctx := context.Background()

	g := Bound(2, func(j int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return j, nil
	})

	handles := make([]<-chan Result[int], 0, 8)
	for j := range 8 {
		handles = append(handles, g.Push(ctx, j))
	}
	for j, hnd := range handles {
		res := <-hnd
		require.NoError(t, res.Err)
		require.Equal(t, j, res.Value)
	}
	g.Close()

	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBoundGroupTaskError(t *testing.T) {
	errBad := errors.New("bad input")

	ctx := context.Background()

	g := Bound(1, func(j int) (int, error) {
		if j < 0 {
			return 0, errBad
		}
		return j, nil
	})
	defer g.Close()

	res := <-g.Push(ctx, -1)
	require.ErrorIs(t, res.Err, errBad)
}

func TestBoundGroupTaskPanic(t *testing.T) {
	ctx := context.Background()

	g := Bound(1, func(j int) (int, error) {
		panic("exploded")
	})
	defer g.Close()

	res := <-g.Push(ctx, 1)
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "exploded")
}
