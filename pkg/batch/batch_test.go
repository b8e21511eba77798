package batch

import (
	"testing"

	"lsmstore/pkg/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBatch(t *testing.T) {
	b := New()
	key, value := []byte("k1"), []byte("v1")
	b.Put(key, value)
	b.Delete([]byte("k2"))
	key[0], value[0] = 'X', 'X'

	require.Equal(t, 2, b.Count())
	recs := b.Records()
	assert.Equal(t, "k1", string(recs[0].Key()))
	assert.Equal(t, "v1", string(recs[0].Value()))
	assert.True(t, recs[1].IsTombstone())

	want := record.Of([]byte("k1"), []byte("v1")).Size() + record.Tombstone([]byte("k2")).Size()
	assert.Equal(t, want, b.Size())

	b.Clear()
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, 0, b.Size())
}
