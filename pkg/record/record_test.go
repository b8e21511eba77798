package record_test

import (
	"bytes"
	"testing"

	"lsmstore/pkg/record"

	"github.com/stretchr/testify/assert"
)

func TestRecord_OfAndTombstone(t *testing.T) {
	live := record.Of([]byte("k"), []byte("v"))
	assert.False(t, live.IsTombstone())
	assert.Equal(t, []byte("v"), live.Value())

	empty := record.Of([]byte("k"), nil)
	assert.False(t, empty.IsTombstone(), "nil value must not turn into a tombstone")
	assert.NotNil(t, empty.Value())
	assert.Len(t, empty.Value(), 0)

	dead := record.Tombstone([]byte("k"))
	assert.True(t, dead.IsTombstone())
	assert.Nil(t, dead.Value())
}

func TestRecord_Size(t *testing.T) {
	assert.Equal(t, 3+5+8, record.Of([]byte("abc"), []byte("hello")).Size())
	assert.Equal(t, 3+8, record.Tombstone([]byte("abc")).Size())
}

func TestRecord_UnsignedOrdering(t *testing.T) {
	low := record.Of([]byte{0x7f}, nil)
	high := record.Of([]byte{0x80}, nil)

	assert.True(t, low.Less(high), "0x80 must sort after 0x7f")
	assert.False(t, high.Less(low))
	assert.Equal(t, 0, low.Compare([]byte{0x7f}))
	assert.Equal(t, -1, low.Compare([]byte{0x7f, 0x00}))
}

func TestNextKey(t *testing.T) {
	key := []byte("abc")
	next := record.NextKey(key)

	assert.Equal(t, []byte("abc\x00"), next)
	assert.Equal(t, 1, bytes.Compare(next, key))
	assert.Equal(t, -1, bytes.Compare(next, []byte("abd")))
	assert.Equal(t, []byte("abc"), key, "input must not be modified")
}
