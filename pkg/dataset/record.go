package dataset

// Record is one keyed row of data.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// RecordBatch is a Batch over a slice of records, one per index key, in
// index order. It is the batch kind produced by the memory and sqlite
// datasets.
type RecordBatch struct {
	idx     Index
	records []Record
}

// NewRecordBatch builds a batch from idx and records; records[i] belongs to
// idx[i].
func NewRecordBatch(idx Index, records []Record) *RecordBatch {
	return &RecordBatch{idx: idx, records: records}
}

var _ Batch = (*RecordBatch)(nil)

// Index returns the keys this batch was built from.
func (b *RecordBatch) Index() Index {
	return b.idx
}

// Records returns the rows in index order. Callers must not mutate the
// returned slice; derive a new batch instead.
func (b *RecordBatch) Records() []Record {
	return b.records
}

// Len returns the number of records.
func (b *RecordBatch) Len() int {
	return len(b.records)
}

// Map returns a new batch with fn applied to a copy of every record.
func (b *RecordBatch) Map(fn func(Record) Record) *RecordBatch {
	out := make([]Record, len(b.records))
	for i, r := range b.records {
		out[i] = fn(r.Clone())
	}
	return NewRecordBatch(b.idx, out)
}
