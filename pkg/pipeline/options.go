package pipeline

import "github.com/conveyr/conveyr/pkg/dataset"

// Target selects the worker execution model for prefetched runs.
type Target string

const (
	// TargetGoroutines runs replay on a bounded pool of goroutines.
	TargetGoroutines Target = "goroutines"

	// TargetProcesses additionally forces every batch through the batch
	// kind's transfer codec, enforcing the serialization contract a
	// process boundary would require. It is only valid for batch kinds
	// with a registered Codec.
	TargetProcesses Target = "processes"
)

// maxPrefetch caps the lookahead degree to bound worker and memory use.
const maxPrefetch = 60

// RunOptions parameterize one streaming run.
type RunOptions struct {
	// BatchSize is the number of keys per batch. Must be at least 1.
	BatchSize int

	// Shuffle permutes key order per epoch.
	Shuffle bool

	// Epochs is the number of passes over the dataset. Zero means one;
	// negative iterates without end.
	Epochs int

	// DropLast skips an epoch's short trailing batch.
	DropLast bool

	// Seed makes shuffling reproducible when non-zero.
	Seed int64

	// Prefetch is the lookahead degree: the number of batches computed
	// ahead of consumption. Zero disables the prefetch engine entirely
	// and replays batches synchronously in generator order.
	Prefetch int

	// Target selects the worker execution model. Empty defaults to
	// TargetGoroutines; "threads" is accepted as an alias.
	Target Target
}

// normalize validates the options and fills in defaults.
func (o RunOptions) normalize() (RunOptions, error) {
	if o.BatchSize < 1 {
		return o, InvalidBatchSizeError(o.BatchSize)
	}
	if o.Prefetch < 0 {
		return o, InvalidPrefetchError(o.Prefetch)
	}
	if o.Prefetch > maxPrefetch {
		o.Prefetch = maxPrefetch
	}
	if o.Epochs == 0 {
		o.Epochs = 1
	}

	switch o.Target {
	case "", "threads", TargetGoroutines:
		o.Target = TargetGoroutines
	case TargetProcesses:
	default:
		return o, InvalidTargetError(o.Target)
	}

	return o, nil
}

func (o RunOptions) genOptions() dataset.GenOptions {
	return dataset.GenOptions{
		BatchSize: o.BatchSize,
		Shuffle:   o.Shuffle,
		Epochs:    o.Epochs,
		DropLast:  o.DropLast,
		Seed:      o.Seed,
	}
}
