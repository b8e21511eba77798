package memtable

import (
	"bytes"
	"sync/atomic"

	"lsmstore/pkg/iterator"
	"lsmstore/pkg/record"

	"github.com/zhangyunhao116/skipmap"
)

type concurrentSet = skipmap.FuncMap[[]byte, record.Record]

// Memtable is the in-memory sorted write buffer. It is safe for one writer
// and any number of concurrent readers. The engine never clears a memtable;
// it swaps in a new one, so readers holding the old one keep a stable view.
type Memtable struct {
	size       atomic.Int64
	underlying *concurrentSet
}

func New() *Memtable {
	return &Memtable{
		underlying: skipmap.NewFunc[[]byte, record.Record](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		}),
	}
}

// Upsert inserts or replaces the record for rec's key. Tombstones are stored
// like any other record so they can shadow older on-disk values.
func (mt *Memtable) Upsert(rec record.Record) {
	mt.underlying.Store(rec.Key(), rec)
	mt.size.Add(int64(rec.Size()))
}

func (mt *Memtable) Get(key []byte) (record.Record, bool) {
	return mt.underlying.Load(key)
}

// Size is the number of bytes accounted by upserts since creation.
// Overwrites are accounted again, matching the flush budget semantics.
func (mt *Memtable) Size() int64 {
	return mt.size.Load()
}

func (mt *Memtable) Len() int {
	return mt.underlying.Len()
}

// Range returns a snapshot of the records with from <= key < to in key
// order. A nil bound is open.
func (mt *Memtable) Range(from, to []byte) []record.Record {
	var result []record.Record
	mt.underlying.Range(func(key []byte, value record.Record) bool {
		if from != nil && bytes.Compare(key, from) < 0 {
			return true
		}
		if to != nil && bytes.Compare(key, to) >= 0 {
			return false
		}
		result = append(result, value)
		return true
	})
	return result
}

// Iterator is Range wrapped as an iterator.
func (mt *Memtable) Iterator(from, to []byte) iterator.Iterator {
	return iterator.FromSlice(mt.Range(from, to))
}
