package pipeline

import (
	"context"

	"github.com/conveyr/conveyr/pkg/dataset"
)

// Call carries the arguments of one replayed action.
type Call struct {
	// Name is the action name as it appears in the log.
	Name string

	// Joined holds one batch per dataset of the preceding join marker,
	// materialized with the current batch's index. Nil when the action was
	// not preceded by a join.
	Joined []dataset.Batch

	// Args are the positional arguments recorded at declaration time.
	Args []any

	// Kwargs are the named arguments recorded at declaration time.
	Kwargs map[string]any
}

// Arg returns the i-th positional argument, or nil when absent.
func (c Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// Kwarg returns the named argument, or nil when absent.
func (c Call) Kwarg(name string) any {
	return c.Kwargs[name]
}

// OpFunc is one operation of a batch kind. It receives the current batch
// and the recorded call, and returns the batch for the next action.
type OpFunc func(ctx context.Context, b dataset.Batch, call Call) (dataset.Batch, error)

// Codec serializes batches across a transfer boundary. Registering one on
// a Registry is what makes the batch kind eligible for the process worker
// target.
type Codec interface {
	Encode(b dataset.Batch) ([]byte, error)
	Decode(data []byte) (dataset.Batch, error)
}

type operation struct {
	fn      OpFunc
	allowed bool
}

// Registry is the capability set of one batch kind: the named operations a
// pipeline log may invoke on it. Operations registered with Register are
// eligible as actions; RegisterInternal records an operation that exists
// but must not be driven from a log, so that a misused internal name fails
// differently from a typo.
type Registry struct {
	kind  string
	ops   map[string]operation
	codec Codec
}

// NewRegistry returns an empty registry for the named batch kind.
func NewRegistry(kind string) *Registry {
	return &Registry{
		kind: kind,
		ops:  make(map[string]operation),
	}
}

// Kind returns the batch kind name.
func (r *Registry) Kind() string {
	return r.kind
}

// Register adds an operation eligible for use as an action.
func (r *Registry) Register(name string, fn OpFunc) *Registry {
	r.ops[name] = operation{fn: fn, allowed: true}
	return r
}

// RegisterInternal adds an operation that exists on the batch kind but is
// not allowed as an action.
func (r *Registry) RegisterInternal(name string, fn OpFunc) *Registry {
	r.ops[name] = operation{fn: fn, allowed: false}
	return r
}

// WithCodec attaches a transfer codec to the batch kind.
func (r *Registry) WithCodec(c Codec) *Registry {
	r.codec = c
	return r
}

// Codec returns the attached transfer codec, or nil.
func (r *Registry) Codec() Codec {
	return r.codec
}

// Resolve returns the operation registered under name, distinguishing an
// unknown name from a known-but-internal one.
func (r *Registry) Resolve(name string) (OpFunc, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, ActionNotFoundError(name, r.kind)
	}
	if !op.allowed {
		return nil, ActionNotAllowedError(name, r.kind)
	}
	return op.fn, nil
}
