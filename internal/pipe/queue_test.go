package pipe

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const itemCount = 1000

func feed(q *Queue[int]) {
	for i := range itemCount {
		q.Put(i)
	}
}

func consume(q *Queue[int], count *atomic.Uint64) {
	for {
		var v int
		if !q.Get(&v) {
			break
		}
		count.Add(1)
	}
}

func TestBoundedProducerConsumer(t *testing.T) {
	q := MustBounded[int](7)

	var count atomic.Uint64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		feed(q)
		q.Close()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(q, &count)
	}()

	wg.Wait()
	require.Equal(t, uint64(itemCount), count.Load())
}

func TestBoundedPreservesOrder(t *testing.T) {
	q := MustBounded[int](3)

	go func() {
		feed(q)
		q.Close()
	}()

	var got []int
	var v int
	for q.Get(&v) {
		got = append(got, v)
	}

	require.Len(t, got, itemCount)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestBoundedPutBlocksWhenFull(t *testing.T) {
	q := MustBounded[int](2)

	require.True(t, q.Put(1))
	require.True(t, q.Put(2))

	blocked := make(chan struct{})
	go func() {
		q.Put(3)
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("Put returned while the queue was full")
	default:
	}

	var v int
	require.True(t, q.Get(&v))
	require.Equal(t, 1, v)
	<-blocked
	require.Equal(t, 2, q.Len())
}

func TestCloseUnblocksFullPut(t *testing.T) {
	q := MustBounded[int](1)
	require.True(t, q.Put(1))

	done := make(chan bool)
	go func() {
		done <- q.Put(2)
	}()

	q.Close()
	require.False(t, <-done)
}

func TestGetDrainsAfterClose(t *testing.T) {
	q := MustBounded[int](4)
	require.True(t, q.Put(10))
	require.True(t, q.Put(20))
	q.Close()

	var v int
	require.True(t, q.Get(&v))
	require.Equal(t, 10, v)
	require.True(t, q.Get(&v))
	require.Equal(t, 20, v)
	require.False(t, q.Get(&v))

	require.False(t, q.Put(30))
}

func TestUnboundedNeverBlocks(t *testing.T) {
	q := NewUnbounded[int]()

	feed(q)
	require.Equal(t, itemCount, q.Len())
	q.Close()

	var count atomic.Uint64
	consume(q, &count)
	require.Equal(t, uint64(itemCount), count.Load())
}

func TestUnboundedPreservesOrderAcrossGrowth(t *testing.T) {
	q := NewUnbounded[int]()

	// Interleave puts and gets so the ring wraps before it grows.
	var v int
	for i := range 5 {
		require.True(t, q.Put(i))
	}
	require.True(t, q.Get(&v))
	require.Equal(t, 0, v)
	require.True(t, q.Get(&v))
	require.Equal(t, 1, v)
	for i := 5; i < 40; i++ {
		require.True(t, q.Put(i))
	}

	for want := 2; want < 40; want++ {
		require.True(t, q.Get(&v))
		require.Equal(t, want, v)
	}
	require.Equal(t, 0, q.Len())
}

func TestNewBoundedRejectsInvalidCapacity(t *testing.T) {
	_, err := NewBounded[int](0)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	require.Panics(t, func() {
		MustBounded[int](-1)
	})
}

func TestMultipleProducers(t *testing.T) {
	q := MustBounded[int](16)

	var count atomic.Uint64
	var producers sync.WaitGroup
	var consumers sync.WaitGroup

	for range 4 {
		producers.Add(1)
		go func() {
			defer producers.Done()
			feed(q)
		}()
	}

	consumers.Add(1)
	go func() {
		defer consumers.Done()
		consume(q, &count)
	}()

	producers.Wait()
	q.Close()
	consumers.Wait()

	require.Equal(t, uint64(itemCount*4), count.Load())
}
