package persistence

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"lsmstore/pkg/dberrors"
	"lsmstore/pkg/iterator"
	"lsmstore/pkg/record"

	"github.com/google/uuid"
)

const writeBufferSize = 64 << 10

// SSTable is an immutable sorted segment: a data file of encoded records and
// an index file holding one offset per record. Both files are mapped
// read-only for the lifetime of the table.
//
// A table is reference counted. Open returns it with one reference owned by
// the caller; the mapping is released when the last reference is dropped.
type SSTable struct {
	dir        string
	generation int
	data       []byte
	index      []byte
	refs       atomic.Int32
}

// Write serializes it, which must yield strictly ascending keys, into a new
// segment of the given generation and opens it. Both files are staged under
// temporary names and only renamed into place after they are synced, index
// file first. On any failure, including a failed directory sync after the
// renames, nothing is left under the final names.
func Write(dir string, generation int, it iterator.Iterator) (table *SSTable, err error) {
	defer func() {
		if cerr := it.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close source iterator: %w", cerr)
		}
	}()

	suffix := "." + uuid.NewString() + TempSuffix
	dataTmp := DataPath(dir, generation) + suffix
	indexTmp := IndexPath(dir, generation) + suffix

	defer func() {
		if err == nil {
			return
		}
		for _, path := range []string{dataTmp, indexTmp} {
			if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
				slog.Warn("failed to remove temporary segment file", "path", path, "error", rerr)
			}
		}
	}()

	if err := writeFiles(dataTmp, indexTmp, it); err != nil {
		return nil, err
	}

	if err := os.Rename(indexTmp, IndexPath(dir, generation)); err != nil {
		return nil, fmt.Errorf("failed to publish index file: %w", err)
	}
	if err := os.Rename(dataTmp, DataPath(dir, generation)); err != nil {
		if rerr := os.Remove(IndexPath(dir, generation)); rerr != nil {
			slog.Warn("failed to remove index of unpublished segment", "generation", generation, "error", rerr)
		}
		return nil, fmt.Errorf("failed to publish data file: %w", err)
	}
	if err := syncDir(dir); err != nil {
		// The caller treats the generation as unused.
		for _, path := range []string{DataPath(dir, generation), IndexPath(dir, generation)} {
			if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
				slog.Warn("failed to remove unsynced segment file", "path", path, "error", rerr)
			}
		}
		return nil, err
	}

	return Open(dir, generation)
}

func writeFiles(dataPath, indexPath string, it iterator.Iterator) error {
	dataFile, err := createExclusive(dataPath)
	if err != nil {
		return err
	}
	defer closeQuietly(dataFile)

	indexFile, err := createExclusive(indexPath)
	if err != nil {
		return err
	}
	defer closeQuietly(indexFile)

	var (
		dataW   = bufio.NewWriterSize(dataFile, writeBufferSize)
		indexW  = bufio.NewWriterSize(indexFile, writeBufferSize)
		offset  int64
		prevKey []byte
		first   = true
	)
	for ; it.Valid(); it.Next() {
		rec := it.Record()
		if !first && bytes.Compare(prevKey, rec.Key()) >= 0 {
			return fmt.Errorf("%w: keys not strictly ascending at %q", dberrors.ErrInvalidArgument, rec.Key())
		}
		first = false
		prevKey = rec.Key()

		if err := encodeOffset(indexW, offset); err != nil {
			return fmt.Errorf("failed to write index entry: %w", err)
		}
		n, err := encodeRecord(dataW, rec)
		if err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		offset += int64(n)
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to read source records: %w", err)
	}

	for _, f := range []struct {
		w    *bufio.Writer
		file *os.File
	}{{dataW, dataFile}, {indexW, indexFile}} {
		if err := f.w.Flush(); err != nil {
			return fmt.Errorf("failed to flush %s: %w", f.file.Name(), err)
		}
		if err := f.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync %s: %w", f.file.Name(), err)
		}
	}
	return nil
}

func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment file: %w", err)
	}
	return f, nil
}

func closeQuietly(f *os.File) {
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.Warn("failed to close segment file", "path", f.Name(), "error", err)
	}
}

// Open maps an existing segment.
func Open(dir string, generation int) (*SSTable, error) {
	index, err := mapFile(IndexPath(dir, generation))
	if err != nil {
		return nil, fmt.Errorf("failed to map index file: %w", err)
	}
	data, err := mapFile(DataPath(dir, generation))
	if err != nil {
		_ = unmapFile(index)
		return nil, fmt.Errorf("failed to map data file: %w", err)
	}

	if err := validate(data, index); err != nil {
		_ = unmapFile(index)
		_ = unmapFile(data)
		return nil, fmt.Errorf("segment %d: %w", generation, err)
	}

	t := &SSTable{
		dir:        dir,
		generation: generation,
		data:       data,
		index:      index,
	}
	t.refs.Store(1)
	return t, nil
}

func validate(data, index []byte) error {
	if len(index)%offsetSize != 0 {
		return fmt.Errorf("%w: index size %d is not a multiple of %d", dberrors.ErrCorruptFormat, len(index), offsetSize)
	}
	if (len(index) == 0) != (len(data) == 0) {
		return fmt.Errorf("%w: %d index bytes for %d data bytes", dberrors.ErrCorruptFormat, len(index), len(data))
	}
	if len(index) > 0 {
		if off, err := offsetAt(index, 0, len(data)); err != nil {
			return err
		} else if off != 0 {
			return fmt.Errorf("%w: first record at offset %d", dberrors.ErrCorruptFormat, off)
		}
	}
	return nil
}

// Retain adds a reference. It fails once the table has been released.
func (t *SSTable) Retain() bool {
	for {
		n := t.refs.Load()
		if n <= 0 {
			return false
		}
		if t.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference and unmaps the files when it was the last one.
// Extra calls after that are no-ops.
func (t *SSTable) Release() error {
	for {
		n := t.refs.Load()
		if n <= 0 {
			return nil
		}
		if !t.refs.CompareAndSwap(n, n-1) {
			continue
		}
		if n > 1 {
			return nil
		}
		err := errors.Join(unmapFile(t.data), unmapFile(t.index))
		if err != nil {
			return fmt.Errorf("failed to unmap segment %d: %w", t.generation, err)
		}
		return nil
	}
}

// Close drops the reference obtained from Open or Write.
func (t *SSTable) Close() error {
	return t.Release()
}

// Range iterates over the records with from <= key < to. A nil bound is
// open. The caller must hold a reference until the iterator is done.
func (t *SSTable) Range(from, to []byte) iterator.Iterator {
	start, end, err := byteRange(t.data, t.index, from, to)
	if err != nil {
		return &rangeIterator{err: fmt.Errorf("segment %d: %w", t.generation, err)}
	}
	it := &rangeIterator{table: t, next: start, end: end}
	it.Next()
	return it
}

// Delete removes the segment files. The data file goes first so that a crash
// in between leaves only an index, which is discarded on the next open.
func (t *SSTable) Delete() error {
	if err := os.Remove(t.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete data file: %w", err)
	}
	if err := os.Remove(IndexPath(t.dir, t.generation)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete index file: %w", err)
	}
	return nil
}

// Rename moves the segment files to another generation, index file first.
// The mapping is unaffected.
func (t *SSTable) Rename(generation int) error {
	if generation == t.generation {
		return nil
	}
	if err := os.Rename(IndexPath(t.dir, t.generation), IndexPath(t.dir, generation)); err != nil {
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	if err := os.Rename(t.Path(), DataPath(t.dir, generation)); err != nil {
		return fmt.Errorf("failed to rename data file: %w", err)
	}
	if err := syncDir(t.dir); err != nil {
		return err
	}
	t.generation = generation
	return nil
}

func (t *SSTable) Generation() int {
	return t.generation
}

// Size returns the combined size of the data and index files.
func (t *SSTable) Size() int64 {
	return int64(len(t.data) + len(t.index))
}

// Len returns the number of records, tombstones included.
func (t *SSTable) Len() int {
	return len(t.index) / offsetSize
}

// Path returns the data file path.
func (t *SSTable) Path() string {
	return DataPath(t.dir, t.generation)
}

func (t *SSTable) String() string {
	return filepath.Base(t.Path())
}

// rangeIterator decodes records lazily between two byte offsets.
type rangeIterator struct {
	table *SSTable
	next  int
	end   int

	cur   record.Record
	valid bool
	err   error
}

func (it *rangeIterator) Valid() bool { return it.valid }

func (it *rangeIterator) Next() {
	it.valid = false
	if it.err != nil || it.table == nil || it.next >= it.end {
		return
	}
	rec, next, err := decodeRecord(it.table.data, it.next)
	if err != nil {
		it.err = fmt.Errorf("segment %d: %w", it.table.generation, err)
		return
	}
	if next > it.end {
		it.err = fmt.Errorf("segment %d: %w: record at %d crosses range end %d",
			it.table.generation, dberrors.ErrCorruptFormat, it.next, it.end)
		return
	}
	it.cur, it.next, it.valid = rec, next, true
}

func (it *rangeIterator) Record() record.Record { return it.cur }

func (it *rangeIterator) Err() error { return it.err }

func (it *rangeIterator) Close() error {
	it.valid = false
	it.table = nil
	return nil
}
