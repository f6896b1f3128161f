package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conveyr/conveyr/pkg/dataset"
	"github.com/conveyr/conveyr/pkg/pipeline"
)

// builtinRegistry is the capability set of record batches as produced by
// the memory and sqlite datasets. The codec makes the kind eligible for
// the process worker target.
func builtinRegistry() *pipeline.Registry {
	return pipeline.NewRegistry("records").
		Register("scale", opScale).
		Register("tag", opTag).
		Register("project", opProject).
		Register("drop", opDrop).
		WithCodec(recordCodec{})
}

func recordBatch(b dataset.Batch) (*dataset.RecordBatch, error) {
	rb, ok := b.(*dataset.RecordBatch)
	if !ok {
		return nil, fmt.Errorf("expected a record batch, got %T", b)
	}
	return rb, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// opScale multiplies a numeric field by a factor. The field defaults to
// "value" and can be overridden with the "field" kwarg.
func opScale(_ context.Context, b dataset.Batch, call pipeline.Call) (dataset.Batch, error) {
	factor, ok := asFloat(call.Arg(0))
	if !ok {
		return nil, errors.New("scale requires a numeric factor argument")
	}
	field := "value"
	if f, ok := call.Kwarg("field").(string); ok {
		field = f
	}

	rb, err := recordBatch(b)
	if err != nil {
		return nil, err
	}
	return rb.Map(func(r dataset.Record) dataset.Record {
		if v, ok := asFloat(r[field]); ok {
			r[field] = v * factor
		}
		return r
	}), nil
}

// opTag sets every kwarg as a field on every record.
func opTag(_ context.Context, b dataset.Batch, call pipeline.Call) (dataset.Batch, error) {
	rb, err := recordBatch(b)
	if err != nil {
		return nil, err
	}
	return rb.Map(func(r dataset.Record) dataset.Record {
		for k, v := range call.Kwargs {
			r[k] = v
		}
		return r
	}), nil
}

// opProject keeps only the fields named by the positional arguments.
func opProject(_ context.Context, b dataset.Batch, call pipeline.Call) (dataset.Batch, error) {
	keep := make(map[string]bool, len(call.Args))
	for _, a := range call.Args {
		f, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("project requires field name arguments, got %T", a)
		}
		keep[f] = true
	}

	rb, err := recordBatch(b)
	if err != nil {
		return nil, err
	}
	return rb.Map(func(r dataset.Record) dataset.Record {
		for k := range r {
			if !keep[k] {
				delete(r, k)
			}
		}
		return r
	}), nil
}

// opDrop removes the fields named by the positional arguments.
func opDrop(_ context.Context, b dataset.Batch, call pipeline.Call) (dataset.Batch, error) {
	rb, err := recordBatch(b)
	if err != nil {
		return nil, err
	}
	return rb.Map(func(r dataset.Record) dataset.Record {
		for _, a := range call.Args {
			if f, ok := a.(string); ok {
				delete(r, f)
			}
		}
		return r
	}), nil
}

// recordCodec serializes record batches as JSON for the process worker
// target.
type recordCodec struct{}

type recordPayload struct {
	Index   dataset.Index    `json:"index"`
	Records []dataset.Record `json:"records"`
}

func (recordCodec) Encode(b dataset.Batch) ([]byte, error) {
	rb, err := recordBatch(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordPayload{Index: rb.Index(), Records: rb.Records()})
}

func (recordCodec) Decode(data []byte) (dataset.Batch, error) {
	var p recordPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return dataset.NewRecordBatch(p.Index, p.Records), nil
}
