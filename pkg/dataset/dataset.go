// Package dataset defines the contracts between a pipeline and the data it
// operates on: an ordered key space (Index), the unit of work materialized
// from it (Batch), and the Dataset that owns both. It also provides
// IndexSource, a reusable iteration engine that implementations embed to get
// shuffling, epochs and batch slicing for free.
package dataset

import (
	"context"
	"errors"
)

// ErrIteratorDone is returned by iterators once they are exhausted.
var ErrIteratorDone = errors.New("iterator done")

// Index is an ordered set of keys identifying the items of a batch.
type Index []string

// Clone returns an independent copy of the index.
func (i Index) Clone() Index {
	c := make(Index, len(i))
	copy(c, i)
	return c
}

// Batch is the unit of data a pipeline operates on. Concrete batch kinds
// expose their operations through a pipeline capability registry; the only
// thing the engine itself needs is the index the batch was built from.
type Batch interface {
	Index() Index
}

// IndexIterator is a lazy sequence of index batches. It is closed by
// explicitly calling Stop() or by calling Next() until it returns
// ErrIteratorDone. Once consumed it cannot be restarted; obtain a fresh
// iterator instead.
type IndexIterator interface {
	// Next returns the next index batch. If the context is canceled it
	// returns ErrIteratorDone.
	Next(ctx context.Context) (Index, error)
	// Stop terminates iteration early.
	Stop()
}

// GenOptions controls index-batch generation.
type GenOptions struct {
	// BatchSize is the number of keys per index batch. Must be at least 1.
	BatchSize int

	// Shuffle permutes the key order independently for every epoch.
	Shuffle bool

	// Epochs is the number of passes over the key space. Zero means one
	// pass; a negative value iterates without end.
	Epochs int

	// DropLast skips an epoch's trailing batch when it holds fewer than
	// BatchSize keys.
	DropLast bool

	// Seed makes shuffling reproducible when non-zero.
	Seed int64
}

// Dataset supplies index batches and materializes Batch values from them.
// CreateBatch must be safe for concurrent use; the pipeline calls it from
// parallel workers.
type Dataset interface {
	// Index returns the ordered key space. len() of the returned index is
	// the dataset length.
	Index() Index

	// CreateBatch materializes the batch identified by idx.
	CreateBatch(ctx context.Context, idx Index) (Batch, error)

	// GenBatch returns a fresh lazy sequence of index batches.
	GenBatch(opts GenOptions) IndexIterator

	// NextBatch advances an internal cursor one index batch at a time. The
	// cursor is built from the options of the first call; later calls
	// ignore their options until ResetIter.
	NextBatch(opts GenOptions) (Index, error)

	// ResetIter clears all iteration state so a fresh pass can begin.
	ResetIter()
}
