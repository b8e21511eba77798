package store

import (
	"errors"
	"sync/atomic"

	"lsmstore/pkg/persistence"
)

// version is an immutable segment list ordered by ascending generation.
// The store holds one reference on the current version and every reader
// pins the version it reads from. A version holds one reference on each of
// its tables and drops them when its own count reaches zero.
type version struct {
	tables []*persistence.SSTable
	refs   atomic.Int32
}

func newVersion(tables []*persistence.SSTable) *version {
	v := &version{tables: tables}
	v.refs.Store(1)
	return v
}

// extend returns a version with the tables of v followed by table. The new
// version takes over the caller's reference on table.
func (v *version) extend(table *persistence.SSTable) *version {
	tables := make([]*persistence.SSTable, 0, len(v.tables)+1)
	for _, t := range v.tables {
		// v is still current, so its tables are alive.
		t.Retain()
		tables = append(tables, t)
	}
	return newVersion(append(tables, table))
}

// nextGeneration returns the generation a new segment should get.
func (v *version) nextGeneration() int {
	if len(v.tables) == 0 {
		return 0
	}
	return v.tables[len(v.tables)-1].Generation() + 1
}

func (v *version) acquire() bool {
	for {
		n := v.refs.Load()
		if n <= 0 {
			return false
		}
		if v.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (v *version) release() error {
	if v.refs.Add(-1) != 0 {
		return nil
	}
	var errs []error
	for _, t := range v.tables {
		errs = append(errs, t.Release())
	}
	return errors.Join(errs...)
}

func (v *version) diskSize() int64 {
	var n int64
	for _, t := range v.tables {
		n += t.Size()
	}
	return n
}
