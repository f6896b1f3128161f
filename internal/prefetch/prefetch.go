// Package prefetch implements the asynchronous engine behind prefetched
// pipeline runs: a producer stage that materializes batches and submits
// them to a bounded worker group, and a sequencer stage that awaits the
// resulting task handles strictly in submission order. Delivery order
// therefore equals source order no matter how worker completion
// interleaves; the ordering comes from FIFO draining of handles, not from
// completion timing.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/conveyr/conveyr/internal/concurrency"
	"github.com/conveyr/conveyr/internal/pipe"
	"github.com/conveyr/conveyr/pkg/dataset"
	"github.com/conveyr/conveyr/pkg/logger"
	"github.com/conveyr/conveyr/pkg/workgroup"
)

// Materialize builds the batch for one index.
type Materialize func(ctx context.Context, idx dataset.Index) (dataset.Batch, error)

// Apply runs the action log against one batch. It executes inside pooled
// workers and must be safe for concurrent use.
type Apply func(ctx context.Context, b dataset.Batch) (dataset.Batch, error)

// Deliver is the optional sink hook, invoked by the sequencer for every
// resolved batch before it reaches the caller.
type Deliver func(ctx context.Context, b dataset.Batch) error

// Config parameterizes one run.
type Config struct {
	// Prefetch is the lookahead degree; must be at least 1. The worker
	// group and the pending queue are both sized Prefetch+1, so at most
	// Prefetch+1 batches are in flight at any time.
	Prefetch int

	// Sink, when non-nil, receives every resolved batch in delivery order.
	Sink Deliver

	Logger logger.Logger
}

type handle = <-chan workgroup.Result[dataset.Batch]

type result struct {
	batch dataset.Batch
	err   error
}

// Stream is one prefetched run. Batches are pulled with Next until it
// returns dataset.ErrIteratorDone; Stop cancels the run and blocks until
// both stages and all in-flight workers have wound down.
type Stream struct {
	delivery *pipe.Queue[result]
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

// Run starts the producer and sequencer stages over src and returns the
// delivery stream. The run ends when src is exhausted, when a stage or
// worker fails, or when the stream is stopped; in every case all
// goroutines it started are reaped before the stream reports done.
func Run(ctx context.Context, src dataset.IndexIterator, materialize Materialize, apply Apply, cfg Config) *Stream {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	runID := ulid.Make().String()
	workers := cfg.Prefetch + 1

	runCtx, cancel := context.WithCancel(ctx)

	group := workgroup.Bound(workers, func(b dataset.Batch) (dataset.Batch, error) {
		start := time.Now()
		out, err := apply(runCtx, b)
		replayDurationHistogram.Observe(float64(time.Since(start).Milliseconds()))
		return out, err
	})

	pending := pipe.MustBounded[handle](workers)
	delivery := pipe.NewUnbounded[result]()

	s := &Stream{
		delivery: delivery,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	log.Info("starting prefetch run",
		zap.String("run_id", runID),
		zap.Int("prefetch", cfg.Prefetch),
		zap.Int("workers", workers),
	)

	var delivered atomic.Int64

	stages := concurrency.NewPool(runCtx, 2)

	stages.Go(func(ctx context.Context) error {
		return produce(ctx, src, materialize, group, pending)
	})

	stages.Go(func(ctx context.Context) error {
		return sequence(ctx, pending, delivery, cfg.Sink, &delivered)
	})

	// The producer can be parked in pending.Put while the queue is full;
	// closing the queue on cancellation is what unparks it.
	go func() {
		<-runCtx.Done()
		pending.Close()
	}()

	go func() {
		err := stages.Wait()
		// Account for handles the sequencer abandoned on an aborted run.
		var h handle
		for pending.Get(&h) {
			<-h
			batchesInFlightGauge.Dec()
		}
		group.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			delivery.Put(result{err: err})
			log.Warn("prefetch run failed",
				zap.String("run_id", runID),
				zap.Int64("delivered", delivered.Load()),
				zap.Error(err),
			)
		} else {
			log.Info("prefetch run finished",
				zap.String("run_id", runID),
				zap.Int64("delivered", delivered.Load()),
			)
		}
		delivery.Close()
		cancel()
		close(s.done)
	}()

	return s
}

// produce pulls index batches from src, materializes each and submits it to
// the worker group, pushing the task handle into the pending queue. The
// bounded queue is the backpressure mechanism: Put blocks while Prefetch+1
// handles are undrained. Closing the pending queue is the end-of-stream
// sentinel for the sequencer.
func produce(ctx context.Context, src dataset.IndexIterator, materialize Materialize, group workgroup.Group[dataset.Batch, dataset.Batch], pending *pipe.Queue[handle]) error {
	defer pending.Close()
	defer src.Stop()

	for {
		idx, err := src.Next(ctx)
		if errors.Is(err, dataset.ErrIteratorDone) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("index source: %w", err)
		}

		b, err := materialize(ctx, idx)
		if err != nil {
			return fmt.Errorf("materialize batch %v: %w", []string(idx), err)
		}

		batchesInFlightGauge.Inc()
		h := group.Push(ctx, b)
		if !pending.Put(h) {
			batchesInFlightGauge.Dec()
			return nil
		}
	}
}

// sequence drains task handles in submission order, forwarding each
// resolved batch to the sink and the delivery queue. A failed handle aborts
// the run; handles still in the pending queue are abandoned and their
// workers are stopped through the run context.
func sequence(ctx context.Context, pending *pipe.Queue[handle], delivery *pipe.Queue[result], sink Deliver, delivered *atomic.Int64) error {
	var h handle
	for pending.Get(&h) {
		// Handles always resolve: a launched task sends its result, and a
		// push rejected by cancellation sends the cancellation error.
		res := <-h
		batchesInFlightGauge.Dec()

		if res.Err != nil {
			return res.Err
		}

		if sink != nil {
			if err := sink(ctx, res.Value); err != nil {
				return fmt.Errorf("sink: %w", err)
			}
		}

		batchesDeliveredCounter.Inc()
		delivered.Add(1)
		if !delivery.Put(result{batch: res.Value}) {
			return nil
		}
	}
	return nil
}

// Next returns the next batch in source order. It returns
// dataset.ErrIteratorDone once the run has ended and every delivered batch
// has been consumed, or the run's failure, which is terminal.
func (s *Stream) Next(ctx context.Context) (dataset.Batch, error) {
	if ctx.Err() != nil || s.stopped.Load() {
		return nil, dataset.ErrIteratorDone
	}

	var r result
	if !s.delivery.Get(&r) {
		return nil, dataset.ErrIteratorDone
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.batch, nil
}

// Stop cancels the run and discards undelivered batches. It blocks until
// the producer, the sequencer and all in-flight workers have finished.
// Stop is idempotent and safe to call after exhaustion.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancel()
		s.delivery.Close()
	})
	<-s.done
}
