package batch

import (
	"bytes"

	"lsmstore/pkg/record"
)

// WriteBatch groups multiple mutations that are applied together, in the
// order they were added. Keys and values are copied on insertion.
type WriteBatch struct {
	records []record.Record
	size    int
}

func New() *WriteBatch {
	return &WriteBatch{}
}

func (b *WriteBatch) Put(key, value []byte) {
	b.add(record.Of(bytes.Clone(key), bytes.Clone(value)))
}

func (b *WriteBatch) Delete(key []byte) {
	b.add(record.Tombstone(bytes.Clone(key)))
}

func (b *WriteBatch) add(rec record.Record) {
	b.records = append(b.records, rec)
	b.size += rec.Size()
}

func (b *WriteBatch) Clear() {
	b.records = b.records[:0]
	b.size = 0
}

func (b *WriteBatch) Count() int {
	return len(b.records)
}

// Size is the memtable budget the batch will take up.
func (b *WriteBatch) Size() int {
	return b.size
}

// Records returns the mutations in insertion order. The slice is owned by
// the batch.
func (b *WriteBatch) Records() []record.Record {
	return b.records
}
