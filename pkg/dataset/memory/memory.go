// Package memory provides an in-memory implementation of dataset.Dataset
// over keyed records. It is the reference dataset used in tests and by the
// bench command.
package memory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/conveyr/conveyr/pkg/dataset"
)

// Dataset holds records in memory. The records map is read-only after
// construction, so CreateBatch is safe for concurrent use.
type Dataset struct {
	*dataset.IndexSource
	records map[string]dataset.Record
}

var _ dataset.Dataset = (*Dataset)(nil)

// New builds a dataset over keys, in the given order, with one record per
// key. Every key must have a record.
func New(keys dataset.Index, records map[string]dataset.Record) (*Dataset, error) {
	for _, k := range keys {
		if _, ok := records[k]; !ok {
			return nil, fmt.Errorf("no record for key %q", k)
		}
	}
	return &Dataset{
		IndexSource: dataset.NewIndexSource(keys.Clone()),
		records:     records,
	}, nil
}

// Sequence builds a dataset of n records keyed "0".."n-1", each holding its
// ordinal under "value". Useful for synthetic runs and tests.
func Sequence(n int) *Dataset {
	keys := make(dataset.Index, 0, n)
	records := make(map[string]dataset.Record, n)
	for i := range n {
		k := strconv.Itoa(i)
		keys = append(keys, k)
		records[k] = dataset.Record{"value": i}
	}
	ds, err := New(keys, records)
	if err != nil {
		panic(err)
	}
	return ds
}

// CreateBatch materializes the records for idx, in idx order. Records are
// copied so downstream actions may mutate them freely.
func (d *Dataset) CreateBatch(_ context.Context, idx dataset.Index) (dataset.Batch, error) {
	records := make([]dataset.Record, 0, len(idx))
	for _, k := range idx {
		r, ok := d.records[k]
		if !ok {
			return nil, fmt.Errorf("unknown key %q", k)
		}
		records = append(records, r.Clone())
	}
	return dataset.NewRecordBatch(idx.Clone(), records), nil
}
