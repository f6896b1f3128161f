package pipeline

import (
	"context"
	"sync"

	"github.com/conveyr/conveyr/pkg/dataset"
)

// Stream is a lazy sequence of fully replayed batches. It is closed by
// explicitly calling Stop() or by calling Next() until it returns
// dataset.ErrIteratorDone. A stream is not restartable; call GenBatch
// again for a fresh pass.
type Stream interface {
	Next(ctx context.Context) (dataset.Batch, error)
	Stop()
}

// syncStream is the prefetch==0 path: batches are materialized and
// replayed one at a time, in generator order, with no queues or workers
// involved.
type syncStream struct {
	src   dataset.IndexIterator
	ds    dataset.Dataset
	apply applyFunc
	sink  Sink

	mu      sync.Mutex
	stopped bool
}

var _ Stream = (*syncStream)(nil)

func (s *syncStream) Next(ctx context.Context) (dataset.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, dataset.ErrIteratorDone
	}

	b, err := s.advance(ctx)
	if err != nil {
		// Failures are terminal for the run, like on the prefetched
		// path; later batches are not delivered.
		s.stopped = true
		s.src.Stop()
		return nil, err
	}
	return b, nil
}

func (s *syncStream) advance(ctx context.Context) (dataset.Batch, error) {
	idx, err := s.src.Next(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.ds.CreateBatch(ctx, idx)
	if err != nil {
		return nil, err
	}

	b, err = s.apply(ctx, b)
	if err != nil {
		return nil, err
	}

	if s.sink != nil {
		if err := s.sink.Accept(ctx, b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (s *syncStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.src.Stop()
}
