// Package record defines the unit stored by the engine: a key with either a
// value or a deletion marker.
package record

import "bytes"

// lengthPrefixSize is the on-disk width of each length field.
const lengthPrefixSize = 4

// Record is an immutable key/value pair or a tombstone.
// Records compare by key only.
type Record struct {
	key       []byte
	value     []byte
	tombstone bool
}

// Of builds a live record. A nil value is stored as an empty value, not a tombstone.
func Of(key, value []byte) Record {
	if value == nil {
		value = []byte{}
	}
	return Record{key: key, value: value}
}

// Tombstone builds a deletion marker for key.
func Tombstone(key []byte) Record {
	return Record{key: key, tombstone: true}
}

func (r Record) Key() []byte {
	return r.key
}

// Value returns nil for tombstones.
func (r Record) Value() []byte {
	return r.value
}

func (r Record) IsTombstone() bool {
	return r.tombstone
}

// Size is the number of bytes accounted against the memtable budget.
func (r Record) Size() int {
	return len(r.key) + len(r.value) + 2*lengthPrefixSize
}

// Less orders records by unsigned lexicographic key comparison.
func (r Record) Less(than Record) bool {
	return bytes.Compare(r.key, than.key) < 0
}

// Compare returns -1, 0 or +1 comparing r's key with key.
func (r Record) Compare(key []byte) int {
	return bytes.Compare(r.key, key)
}

// NextKey returns the smallest key strictly greater than key.
func NextKey(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}
