package dataset

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// IndexSource implements the iteration half of the Dataset contract over a
// fixed key space. Dataset implementations embed it and add CreateBatch.
type IndexSource struct {
	keys Index

	mu     sync.Mutex
	cursor IndexIterator
}

// NewIndexSource returns a source over the given keys. The slice is not
// copied; callers must not mutate it afterwards.
func NewIndexSource(keys Index) *IndexSource {
	return &IndexSource{keys: keys}
}

// Index returns the ordered key space.
func (s *IndexSource) Index() Index {
	return s.keys
}

// Len returns the number of keys.
func (s *IndexSource) Len() int {
	return len(s.keys)
}

// GenBatch returns a fresh iterator over index batches.
func (s *IndexSource) GenBatch(opts GenOptions) IndexIterator {
	return newGenIterator(s.keys, opts)
}

// NextBatch pulls one index batch from an internal cursor, creating it from
// opts on the first call. Options passed to later calls are ignored until
// ResetIter; this one-shot configuration matches the pipeline's NextBatch.
func (s *IndexSource) NextBatch(opts GenOptions) (Index, error) {
	s.mu.Lock()
	if s.cursor == nil {
		s.cursor = newGenIterator(s.keys, opts)
	}
	cursor := s.cursor
	s.mu.Unlock()

	return cursor.Next(context.Background())
}

// ResetIter discards the NextBatch cursor.
func (s *IndexSource) ResetIter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor != nil {
		s.cursor.Stop()
		s.cursor = nil
	}
}

type genIterator struct {
	mu      sync.Mutex
	keys    Index
	opts    GenOptions
	rng     *rand.Rand
	order   []int
	epoch   int
	pos     int
	stopped bool
}

func newGenIterator(keys Index, opts GenOptions) *genIterator {
	if opts.Epochs == 0 {
		opts.Epochs = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	it := &genIterator{
		keys: keys,
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}
	it.reorder()
	return it
}

// reorder builds the visit order for the current epoch.
func (it *genIterator) reorder() {
	if it.order == nil {
		it.order = make([]int, len(it.keys))
		for i := range it.order {
			it.order[i] = i
		}
	}
	if it.opts.Shuffle {
		it.rng.Shuffle(len(it.order), func(i, j int) {
			it.order[i], it.order[j] = it.order[j], it.order[i]
		})
	}
}

func (it *genIterator) Next(ctx context.Context) (Index, error) {
	if ctx.Err() != nil {
		return nil, ErrIteratorDone
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.stopped || len(it.keys) == 0 {
		return nil, ErrIteratorDone
	}

	// DropLast with a batch size above the key count yields nothing per
	// epoch; end iteration instead of spinning through empty epochs.
	if it.opts.DropLast && it.opts.BatchSize > len(it.keys) {
		it.stopped = true
		return nil, ErrIteratorDone
	}

	for {
		if ctx.Err() != nil {
			return nil, ErrIteratorDone
		}

		if it.pos >= len(it.keys) {
			it.epoch++
			if it.opts.Epochs > 0 && it.epoch >= it.opts.Epochs {
				it.stopped = true
				return nil, ErrIteratorDone
			}
			it.pos = 0
			it.reorder()
		}

		take := it.opts.BatchSize
		if remaining := len(it.keys) - it.pos; take > remaining {
			take = remaining
		}

		if take < it.opts.BatchSize && it.opts.DropLast {
			it.pos = len(it.keys)
			continue
		}

		batch := make(Index, take)
		for i := range take {
			batch[i] = it.keys[it.order[it.pos+i]]
		}
		it.pos += take
		return batch, nil
	}
}

func (it *genIterator) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.stopped = true
}
