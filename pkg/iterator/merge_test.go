package iterator_test

import (
	"errors"
	"testing"

	"lsmstore/pkg/iterator"
	"lsmstore/pkg/record"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type kv struct {
	Key   string
	Value string
	Dead  bool
}

func recs(pairs ...kv) []record.Record {
	out := make([]record.Record, 0, len(pairs))
	for _, p := range pairs {
		if p.Dead {
			out = append(out, record.Tombstone([]byte(p.Key)))
			continue
		}
		out = append(out, record.Of([]byte(p.Key), []byte(p.Value)))
	}
	return out
}

func drain(t *testing.T, it iterator.Iterator) []kv {
	t.Helper()
	got, err := iterator.Collect(it)
	require.NoError(t, err)

	out := make([]kv, 0, len(got))
	for _, r := range got {
		out = append(out, kv{Key: string(r.Key()), Value: string(r.Value()), Dead: r.IsTombstone()})
	}
	return out
}

func TestMergeTwo_NewerWinsTies(t *testing.T) {
	older := iterator.FromSlice(recs(kv{Key: "a", Value: "1"}, kv{Key: "b", Value: "old"}, kv{Key: "d", Value: "4"}))
	newer := iterator.FromSlice(recs(kv{Key: "b", Value: "new"}, kv{Key: "c", Value: "3"}, kv{Key: "e", Value: "5"}))

	want := []kv{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "new"},
		{Key: "c", Value: "3"},
		{Key: "d", Value: "4"},
		{Key: "e", Value: "5"},
	}
	if diff := cmp.Diff(want, drain(t, iterator.MergeTwo(older, newer))); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeTwo_Idempotent(t *testing.T) {
	data := []kv{{Key: "a", Value: "1"}, {Key: "b", Dead: true}, {Key: "c", Value: "3"}}

	got := drain(t, iterator.MergeTwo(iterator.FromSlice(recs(data...)), iterator.FromSlice(recs(data...))))
	if diff := cmp.Diff(data, got); diff != "" {
		t.Fatalf("merging a sequence with itself changed it (-want +got):\n%s", diff)
	}
}

func TestMerge_LaterOperandsWin(t *testing.T) {
	gen0 := iterator.FromSlice(recs(kv{Key: "k", Value: "v0"}, kv{Key: "x", Value: "x0"}))
	gen1 := iterator.FromSlice(recs(kv{Key: "k", Value: "v1"}))
	gen2 := iterator.FromSlice(recs(kv{Key: "k", Dead: true}, kv{Key: "z", Value: "z2"}))

	want := []kv{{Key: "k", Dead: true}, {Key: "x", Value: "x0"}, {Key: "z", Value: "z2"}}
	if diff := cmp.Diff(want, drain(t, iterator.Merge([]iterator.Iterator{gen0, gen1, gen2}))); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_ZeroAndOneInput(t *testing.T) {
	require.Empty(t, drain(t, iterator.Merge(nil)))

	single := iterator.FromSlice(recs(kv{Key: "a", Value: "1"}))
	require.Same(t, single, iterator.Merge([]iterator.Iterator{single}))
}

func TestMerge_OneSideEmpty(t *testing.T) {
	data := []kv{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}

	got := drain(t, iterator.MergeTwo(iterator.Empty(), iterator.FromSlice(recs(data...))))
	require.Equal(t, data, got)

	got = drain(t, iterator.MergeTwo(iterator.FromSlice(recs(data...)), iterator.Empty()))
	require.Equal(t, data, got)
}

func TestLive_DropsTombstones(t *testing.T) {
	older := iterator.FromSlice(recs(kv{Key: "a", Value: "1"}, kv{Key: "b", Value: "2"}, kv{Key: "c", Value: "3"}))
	newer := iterator.FromSlice(recs(kv{Key: "a", Dead: true}, kv{Key: "c", Dead: true}, kv{Key: "d", Dead: true}))

	got := drain(t, iterator.Live(iterator.MergeTwo(older, newer)))
	require.Equal(t, []kv{{Key: "b", Value: "2"}}, got)
}

type failingIterator struct {
	iterator.Iterator
	err error
}

func (f *failingIterator) Valid() bool { return false }
func (f *failingIterator) Err() error  { return f.err }

func TestMerge_PropagatesInputError(t *testing.T) {
	boom := errors.New("boom")
	broken := &failingIterator{Iterator: iterator.Empty(), err: boom}

	merged := iterator.MergeTwo(iterator.FromSlice(recs(kv{Key: "a", Value: "1"})), broken)
	require.False(t, merged.Valid())
	require.ErrorIs(t, merged.Err(), boom)

	_, err := iterator.Collect(merged)
	require.ErrorIs(t, err, boom)
}
