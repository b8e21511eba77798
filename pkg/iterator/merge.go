package iterator

import (
	"bytes"
	"errors"

	"lsmstore/pkg/record"
)

type mergeIterator struct {
	older Iterator
	newer Iterator

	cur   record.Record
	valid bool
	err   error
}

// MergeTwo merges two key-ordered iterators. When both hold the same key the
// record from newer is emitted and the copy from older is dropped.
func MergeTwo(older, newer Iterator) Iterator {
	m := &mergeIterator{older: older, newer: newer}
	m.advance()
	return m
}

// Merge reduces its left to right with MergeTwo, so later iterators win ties
// against earlier ones. With no inputs the result is empty; a single input
// is returned as is.
func Merge(its []Iterator) Iterator {
	switch len(its) {
	case 0:
		return Empty()
	case 1:
		return its[0]
	}

	merged := its[0]
	for _, it := range its[1:] {
		merged = MergeTwo(merged, it)
	}
	return merged
}

func (m *mergeIterator) advance() {
	m.valid = false
	if m.err = errors.Join(m.older.Err(), m.newer.Err()); m.err != nil {
		return
	}

	olderOK, newerOK := m.older.Valid(), m.newer.Valid()
	switch {
	case !olderOK && !newerOK:
		return
	case !olderOK:
		m.cur = m.newer.Record()
		m.newer.Next()
	case !newerOK:
		m.cur = m.older.Record()
		m.older.Next()
	default:
		a, b := m.older.Record(), m.newer.Record()
		switch cmp := bytes.Compare(a.Key(), b.Key()); {
		case cmp < 0:
			m.cur = a
			m.older.Next()
		case cmp == 0:
			m.cur = b
			m.older.Next()
			m.newer.Next()
		default:
			m.cur = b
			m.newer.Next()
		}
	}
	m.valid = true
}

func (m *mergeIterator) Valid() bool { return m.valid }

func (m *mergeIterator) Next() {
	if m.valid {
		m.advance()
	}
}

func (m *mergeIterator) Record() record.Record { return m.cur }

func (m *mergeIterator) Err() error { return m.err }

func (m *mergeIterator) Close() error {
	return errors.Join(m.older.Close(), m.newer.Close())
}
