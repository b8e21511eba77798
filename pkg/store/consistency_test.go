package store

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"lsmstore/pkg/dberrors"
	"lsmstore/pkg/iterator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIteratorSurvivesCompaction reads from a version whose files are deleted
// while the iterator is still open.
func TestIteratorSurvivesCompaction(t *testing.T) {
	store := openStore(t, t.TempDir(), 0)
	defer closeStore(t, store)

	for seg := 0; seg < 3; seg++ {
		for i := 0; i < 10; i++ {
			require.NoError(t, store.PutString(fmt.Sprintf("key-%d-%d", seg, i), "v"))
		}
		require.NoError(t, store.Flush())
	}

	it, err := store.Range(nil, nil)
	require.NoError(t, err)
	require.True(t, it.Valid())
	first := string(it.Record().Key())

	require.NoError(t, store.Compact())
	require.Equal(t, 1, store.Stats().Segments)

	rest, err := iterator.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, "key-0-0", first)
	assert.Len(t, rest, 30)
}

// TestConcurrentReadersDuringFlushAndCompact checks that readers always see
// every key that was written before they started, in order, while the writer
// keeps flushing and compacting.
func TestConcurrentReadersDuringFlushAndCompact(t *testing.T) {
	store := openStore(t, t.TempDir(), 2048)
	defer closeStore(t, store)

	const total = 2000
	var written atomic.Int64
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < total; i++ {
			if err := store.PutString(fmt.Sprintf("key-%05d", i), fmt.Sprintf("value-%05d", i)); err != nil {
				t.Errorf("PutString failed: %v", err)
				return
			}
			written.Store(int64(i + 1))
			if i%250 == 249 {
				if err := store.Compact(); err != nil {
					t.Errorf("Compact failed: %v", err)
					return
				}
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				seen := written.Load()
				it, err := store.Range(nil, nil)
				if err != nil {
					t.Errorf("Range failed: %v", err)
					return
				}
				recs, err := iterator.Collect(it)
				if err != nil {
					t.Errorf("Collect failed: %v", err)
					return
				}
				if int64(len(recs)) < seen {
					t.Errorf("reader saw %d records, at least %d were written", len(recs), seen)
					return
				}
				for j := 1; j < len(recs); j++ {
					if bytes.Compare(recs[j-1].Key(), recs[j].Key()) >= 0 {
						t.Errorf("records out of order at %d", j)
						return
					}
				}
			}
		}()
	}

	wg.Wait()

	for i := 0; i < total; i += 97 {
		key := fmt.Sprintf("key-%05d", i)
		value, found, err := store.GetString(key)
		require.NoError(t, err)
		require.True(t, found, "key %s", key)
		assert.Equal(t, fmt.Sprintf("value-%05d", i), value)
	}
}

func TestConcurrentGetsWhileClosing(t *testing.T) {
	store := openStore(t, t.TempDir(), 256)
	for i := 0; i < 100; i++ {
		require.NoError(t, store.PutString(fmt.Sprintf("key-%03d", i), "v"))
	}

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _, err := store.GetString(fmt.Sprintf("key-%03d", i%100))
				if err != nil {
					// Only a closed store may refuse reads.
					assert.ErrorIs(t, err, dberrors.ErrClosed)
					return
				}
			}
		}()
	}
	require.NoError(t, store.Close())
	wg.Wait()
}
