package iterator

import "lsmstore/pkg/record"

// Iterator iterates over a key-ordered sequence of records.
// A fresh iterator is already positioned on its first record.
type Iterator interface {
	// Valid reports whether the iterator points to a valid record.
	Valid() bool
	// Next advances to the next record.
	Next()
	// Record returns the current record.
	Record() record.Record
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases resources.
	Close() error
}

type sliceIterator struct {
	recs []record.Record
	pos  int
}

// FromSlice iterates over recs, which must already be sorted by key.
func FromSlice(recs []record.Record) Iterator {
	return &sliceIterator{recs: recs}
}

// Empty returns an exhausted iterator.
func Empty() Iterator {
	return &sliceIterator{}
}

func (it *sliceIterator) Valid() bool { return it.pos < len(it.recs) }

func (it *sliceIterator) Next() {
	if it.pos < len(it.recs) {
		it.pos++
	}
}

func (it *sliceIterator) Record() record.Record { return it.recs[it.pos] }

func (it *sliceIterator) Err() error { return nil }

func (it *sliceIterator) Close() error { return nil }

type liveIterator struct {
	Iterator
}

// Live hides tombstones of it. Tombstones still take part in merges below
// this layer; they are only dropped from what the caller sees.
func Live(it Iterator) Iterator {
	l := &liveIterator{Iterator: it}
	l.skipTombstones()
	return l
}

func (l *liveIterator) Next() {
	l.Iterator.Next()
	l.skipTombstones()
}

func (l *liveIterator) skipTombstones() {
	for l.Iterator.Valid() && l.Iterator.Record().IsTombstone() {
		l.Iterator.Next()
	}
}

// Collect drains it into a slice and closes it.
func Collect(it Iterator) ([]record.Record, error) {
	var out []record.Record
	for ; it.Valid(); it.Next() {
		out = append(out, it.Record())
	}
	err := it.Err()
	if cerr := it.Close(); err == nil {
		err = cerr
	}
	return out, err
}
