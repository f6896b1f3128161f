// Package pipeline provides a deferred-action batch pipeline: actions are
// declared fluently against a dataset, recorded in an append-only log, and
// replayed per batch when the pipeline runs, either synchronously or ahead
// of consumption with bounded parallelism and source-order delivery.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/conveyr/conveyr/internal/prefetch"
	"github.com/conveyr/conveyr/pkg/dataset"
	"github.com/conveyr/conveyr/pkg/logger"
)

// applyFunc runs the full action log against one batch.
type applyFunc func(ctx context.Context, b dataset.Batch) (dataset.Batch, error)

// Pipeline binds a dataset, the capability registry of its batch kind and
// an action log. Declaring actions mutates the log; running freezes it and
// replays it per batch.
//
// A pipeline is not reentrant: starting a second streaming run while one
// is active is undefined. Call ResetIter between passes.
type Pipeline struct {
	ds     dataset.Dataset
	reg    *Registry
	log    *Log
	logger logger.Logger

	mu     sync.Mutex
	sink   Sink
	cursor Stream
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger used by runs.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithSink registers a downstream sink at construction time.
func WithSink(s Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithActions attaches a previously declared (or restored) action log
// instead of starting from an empty one.
func WithActions(l *Log) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// New returns a pipeline over ds whose batches expose the operations in
// reg.
func New(ds dataset.Dataset, reg *Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		ds:     ds,
		reg:    reg,
		log:    NewLog(),
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Do appends a deferred call to the action log. The name is not checked
// here; it is resolved against the registry when a run starts, so logs can
// be declared first and attached to a batch kind later.
func (p *Pipeline) Do(name string, args ...any) *Pipeline {
	p.log.Append(name, args, nil)
	return p
}

// DoNamed is Do with named arguments.
func (p *Pipeline) DoNamed(name string, args []any, kwargs map[string]any) *Pipeline {
	p.log.Append(name, args, kwargs)
	return p
}

// Join appends a join marker: the next appended action will receive one
// batch per given dataset, materialized with the primary batch's index.
func (p *Pipeline) Join(datasets ...dataset.Dataset) *Pipeline {
	p.log.AppendJoin(datasets...)
	return p
}

// Actions returns the action log, e.g. for serialization. The log together
// with a reference to the source dataset is the pipeline's entire persisted
// state.
func (p *Pipeline) Actions() *Log {
	return p.log
}

// Index returns the source dataset's key space.
func (p *Pipeline) Index() dataset.Index {
	return p.ds.Index()
}

// Len returns the source dataset's length.
func (p *Pipeline) Len() int {
	return len(p.ds.Index())
}

// SetSink registers the downstream sink invoked once per resolved batch.
func (p *Pipeline) SetSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = s
}

// ClearSink removes the registered sink.
func (p *Pipeline) ClearSink() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = nil
}

func (p *Pipeline) currentSink() Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink
}

// applier freezes and validates the log and returns the replay function
// for this run, wiring in the transfer codec for the process target.
func (p *Pipeline) applier(target Target) (applyFunc, error) {
	if err := p.log.validate(p.reg); err != nil {
		return nil, err
	}

	run := func(ctx context.Context, b dataset.Batch) (dataset.Batch, error) {
		return replay(ctx, b, p.log, p.reg)
	}

	if target == TargetProcesses {
		codec := p.reg.Codec()
		if codec == nil {
			return nil, MissingCodecError(p.reg.Kind())
		}
		inner := run
		run = func(ctx context.Context, b dataset.Batch) (dataset.Batch, error) {
			b, err := roundtrip(codec, b)
			if err != nil {
				return nil, err
			}
			out, err := inner(ctx, b)
			if err != nil {
				return nil, err
			}
			return roundtrip(codec, out)
		}
	}

	return run, nil
}

// roundtrip forces b through the transfer codec, the observable half of
// crossing a process boundary.
func roundtrip(codec Codec, b dataset.Batch) (dataset.Batch, error) {
	data, err := codec.Encode(b)
	if err != nil {
		return nil, err
	}
	return codec.Decode(data)
}

// CreateBatch materializes the batch for idx and replays the action log
// against it synchronously, with no queue involvement.
func (p *Pipeline) CreateBatch(ctx context.Context, idx dataset.Index) (dataset.Batch, error) {
	apply, err := p.applier(TargetGoroutines)
	if err != nil {
		return nil, err
	}

	b, err := p.ds.CreateBatch(ctx, idx)
	if err != nil {
		return nil, err
	}
	return apply(ctx, b)
}

// GenBatch starts a streaming run and returns its batch stream. Every call
// builds fresh run state; an exhausted or stopped stream is not reused.
//
// With opts.Prefetch == 0 batches are replayed synchronously in generator
// order. With opts.Prefetch > 0 up to Prefetch+1 batches are computed ahead
// of consumption by a worker pool, and the stream delivers them strictly in
// source order regardless of completion order. Failures are terminal for
// the run; call ResetIter before retrying.
func (p *Pipeline) GenBatch(ctx context.Context, opts RunOptions) (Stream, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	apply, err := p.applier(opts.Target)
	if err != nil {
		return nil, err
	}

	src := p.ds.GenBatch(opts.genOptions())
	sink := p.currentSink()

	if opts.Prefetch == 0 {
		return &syncStream{
			src:   src,
			ds:    p.ds,
			apply: apply,
			sink:  sink,
		}, nil
	}

	wrapped := func(ctx context.Context, b dataset.Batch) (dataset.Batch, error) {
		out, err := apply(ctx, b)
		if err != nil {
			return nil, &WorkerFailure{Index: b.Index(), Err: err}
		}
		return out, nil
	}

	var deliver prefetch.Deliver
	if sink != nil {
		deliver = sink.Accept
	}

	return prefetch.Run(ctx, src, p.ds.CreateBatch, wrapped, prefetch.Config{
		Prefetch: opts.Prefetch,
		Sink:     deliver,
		Logger:   p.logger,
	}), nil
}

// Run executes the whole streaming run, discarding the yielded batches.
// Useful when only the actions' side effects (or the sink) matter.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) error {
	s, err := p.GenBatch(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Stop()

	for {
		_, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, dataset.ErrIteratorDone) {
				return nil
			}
			return err
		}
	}
}

// NextBatch returns the next replayed batch. With opts.Prefetch > 0 it
// lazily starts one internal stream on the first call; the options of that
// first call stick, and later calls pull from the same stream regardless of
// their options until ResetIter. With opts.Prefetch == 0 it advances the
// dataset's own cursor and replays synchronously.
func (p *Pipeline) NextBatch(ctx context.Context, opts RunOptions) (dataset.Batch, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	if opts.Prefetch > 0 {
		p.mu.Lock()
		cursor := p.cursor
		p.mu.Unlock()

		if cursor == nil {
			fresh, err := p.GenBatch(ctx, opts)
			if err != nil {
				return nil, err
			}

			p.mu.Lock()
			if p.cursor == nil {
				p.cursor = fresh
			}
			cursor = p.cursor
			p.mu.Unlock()

			// A racing first call may have installed its stream already;
			// this one is redundant and gets reaped.
			if cursor != fresh {
				fresh.Stop()
			}
		}

		return cursor.Next(ctx)
	}

	idx, err := p.ds.NextBatch(opts.genOptions())
	if err != nil {
		return nil, err
	}
	return p.CreateBatch(ctx, idx)
}

// ResetIter tears down all run state, including the NextBatch stream if
// one exists, and resets the dataset's iteration cursor. Required between
// passes and after any failed run.
func (p *Pipeline) ResetIter() {
	p.mu.Lock()
	cursor := p.cursor
	p.cursor = nil
	p.mu.Unlock()

	if cursor != nil {
		cursor.Stop()
	}
	p.ds.ResetIter()
}
