package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"lsmstore/pkg/batch"
	"lsmstore/pkg/config"
	"lsmstore/pkg/dberrors"
	"lsmstore/pkg/iterator"
	"lsmstore/pkg/memtable"
	"lsmstore/pkg/metrics"
	"lsmstore/pkg/persistence"
	"lsmstore/pkg/record"
)

// Store is an LSM key-value store over a single directory.
//
// Writes (Upsert, Flush, Compact, Close) are serialized. Reads take no lock:
// they work on the memtable and segment list that are current when the read
// starts, both of which are replaced as a whole and never modified in place.
type Store struct {
	dir            string
	flushThreshold int64
	logger         *slog.Logger
	metrics        metrics.Collector

	mu      sync.Mutex
	mt      atomic.Pointer[memtable.Memtable]
	current atomic.Pointer[version]
	closed  atomic.Bool
}

type Option func(*Store)

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the collector that receives flush and compaction metrics.
func WithMetrics(c metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// Open loads the store kept in cfg.Dir, creating the directory if needed.
func Open(cfg config.DB, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		dir:            cfg.Dir,
		flushThreshold: cfg.Memtable.FlushThresholdBytes,
		logger:         slog.Default(),
		metrics:        metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := persistence.RemoveTempFiles(s.dir, s.logger); err != nil {
		return nil, err
	}

	generations, err := persistence.ListGenerations(s.dir, s.logger)
	if err != nil {
		return nil, err
	}

	tables := make([]*persistence.SSTable, 0, len(generations))
	for _, gen := range generations {
		table, err := persistence.Open(s.dir, gen)
		if err != nil {
			for _, t := range tables {
				if cerr := t.Close(); cerr != nil {
					s.logger.Warn("failed to close segment after open error", "segment", t, "error", cerr)
				}
			}
			return nil, fmt.Errorf("failed to open segment: %w", err)
		}
		s.logger.Debug("segment loaded", "generation", gen, "records", table.Len(), "bytes", table.Size())
		tables = append(tables, table)
	}

	s.mt.Store(memtable.New())
	s.current.Store(newVersion(tables))
	s.reportVersion()

	s.logger.Info("store opened", "dir", s.dir, "segments", len(tables))
	return s, nil
}

// Upsert inserts rec, replacing any older record with the same key. When the
// memtable cannot take rec within the flush threshold it is flushed first.
// rec must not be modified afterwards.
func (s *Store) Upsert(rec record.Record) error {
	if len(rec.Key()) == 0 {
		return fmt.Errorf("%w: empty key", dberrors.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}
	return s.upsert(rec)
}

func (s *Store) upsert(rec record.Record) error {
	mt := s.mt.Load()
	if mt.Len() > 0 && mt.Size()+int64(rec.Size()) > s.flushThreshold {
		if err := s.flush(); err != nil {
			return err
		}
		mt = s.mt.Load()
	}
	mt.Upsert(rec)
	return nil
}

// Write applies the mutations of b in order without interleaving other
// writes. Flushes may still happen between two of them. A failed flush
// leaves the mutations before it applied.
func (s *Store) Write(b *batch.WriteBatch) error {
	for _, rec := range b.Records() {
		if len(rec.Key()) == 0 {
			return fmt.Errorf("%w: empty key in batch", dberrors.ErrInvalidArgument)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}
	for _, rec := range b.Records() {
		if err := s.upsert(rec); err != nil {
			return err
		}
	}
	return nil
}

// Put stores a copy of key and value.
func (s *Store) Put(key, value []byte) error {
	return s.Upsert(record.Of(bytes.Clone(key), bytes.Clone(value)))
}

// Delete writes a tombstone for key.
func (s *Store) Delete(key []byte) error {
	return s.Upsert(record.Tombstone(bytes.Clone(key)))
}

func (s *Store) PutString(key, value string) error {
	return s.Upsert(record.Of([]byte(key), []byte(value)))
}

func (s *Store) DeleteString(key string) error {
	return s.Upsert(record.Tombstone([]byte(key)))
}

// Range returns the live records with from <= key < to in key order. A nil
// bound is open. The iterator must be drained or closed.
func (s *Store) Range(from, to []byte) (iterator.Iterator, error) {
	// The memtable is loaded before the segment list: a flush publishes its
	// segment before swapping the memtable, so no record can be missed.
	mt := s.mt.Load()
	v, err := s.pin()
	if err != nil {
		return nil, err
	}

	its := make([]iterator.Iterator, 0, len(v.tables)+1)
	for _, t := range v.tables {
		its = append(its, t.Range(from, to))
	}
	its = append(its, mt.Iterator(from, to))

	return newPinnedIterator(iterator.Live(iterator.Merge(its)), v), nil
}

func (s *Store) pin() (*version, error) {
	for {
		if s.closed.Load() {
			return nil, dberrors.ErrClosed
		}
		if v := s.current.Load(); v.acquire() {
			return v, nil
		}
	}
}

// Get returns the value stored under key. The memtable shadows every
// segment, so a memtable hit answers without touching them.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, dberrors.ErrClosed
	}
	if rec, ok := s.mt.Load().Get(key); ok {
		if rec.IsTombstone() {
			return nil, false, nil
		}
		return rec.Value(), true, nil
	}

	it, err := s.Range(key, record.NextKey(key))
	if err != nil {
		return nil, false, err
	}
	recs, err := iterator.Collect(it)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key: %w", err)
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return recs[0].Value(), true, nil
}

func (s *Store) GetString(key string) (string, bool, error) {
	value, found, err := s.Get([]byte(key))
	return string(value), found, err
}

// Flush writes the memtable to a new segment. Flushing an empty memtable
// does nothing.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}
	return s.flush()
}

func (s *Store) flush() error {
	mt := s.mt.Load()
	if mt.Len() == 0 {
		return nil
	}

	start := time.Now()
	cur := s.current.Load()
	gen := cur.nextGeneration()

	table, err := persistence.Write(s.dir, gen, mt.Iterator(nil, nil))
	if err != nil {
		return fmt.Errorf("failed to flush memtable: %w", err)
	}

	s.publish(cur.extend(table))
	s.mt.Store(memtable.New())

	took := time.Since(start)
	s.metrics.IncCounter(metrics.FlushesTotal, nil, 1)
	s.metrics.ObserveHistogram(metrics.FlushSeconds, nil, took.Seconds())

	s.logger.Info("memtable flushed",
		"generation", gen,
		"records", table.Len(),
		"bytes", table.Size(),
		"took", took,
	)
	return nil
}

// Compact merges every segment into a single segment of generation 0.
// Tombstones are kept. The memtable is not involved.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}

	cur := s.current.Load()
	switch {
	case len(cur.tables) == 0:
		return nil
	case len(cur.tables) == 1 && cur.tables[0].Generation() == 0:
		return nil
	}

	start := time.Now()
	scratch := cur.nextGeneration()
	before := cur.diskSize()

	its := make([]iterator.Iterator, 0, len(cur.tables))
	for _, t := range cur.tables {
		its = append(its, t.Range(nil, nil))
	}
	merged, err := persistence.Write(s.dir, scratch, iterator.Merge(its))
	if err != nil {
		return fmt.Errorf("failed to write compacted segment: %w", err)
	}

	// Readers of cur keep their mappings after the files are unlinked.
	err = replaceSegments(cur.tables, merged)
	s.publish(newVersion([]*persistence.SSTable{merged}))
	if err != nil {
		return fmt.Errorf("failed to replace compacted segments: %w", err)
	}

	took := time.Since(start)
	s.metrics.IncCounter(metrics.CompactionsTotal, nil, 1)
	s.metrics.ObserveHistogram(metrics.CompactSeconds, nil, took.Seconds())

	s.logger.Info("segments compacted",
		"segments", len(cur.tables),
		"before_bytes", before,
		"after_bytes", merged.Size(),
		"records", merged.Len(),
		"took", took,
	)
	return nil
}

func replaceSegments(old []*persistence.SSTable, merged *persistence.SSTable) error {
	for _, t := range old {
		if err := t.Delete(); err != nil {
			return err
		}
	}
	return merged.Rename(0)
}

// publish makes next the current version and drops the store's reference on
// the previous one.
func (s *Store) publish(next *version) {
	prev := s.current.Swap(next)
	if err := prev.release(); err != nil {
		s.logger.Warn("failed to release superseded segments", "error", err)
	}
	s.reportVersion()
}

func (s *Store) reportVersion() {
	v := s.current.Load()
	s.metrics.SetGauge(metrics.Segments, nil, float64(len(v.tables)))
	s.metrics.SetGauge(metrics.DiskBytes, nil, float64(v.diskSize()))
}

// Close flushes the memtable and releases every segment. Segments still read
// by open iterators are released when those finish.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}

	flushErr := s.flush()
	s.closed.Store(true)
	releaseErr := s.current.Load().release()

	if err := errors.Join(flushErr, releaseErr); err != nil {
		return err
	}
	s.logger.Info("store closed", "dir", s.dir)
	return nil
}

type Stats struct {
	Segments        int
	Generations     []int
	MemtableBytes   int64
	MemtableRecords int
	DiskBytes       int64
}

func (s *Store) Stats() Stats {
	mt := s.mt.Load()
	v := s.current.Load()

	generations := make([]int, 0, len(v.tables))
	for _, t := range v.tables {
		generations = append(generations, t.Generation())
	}
	return Stats{
		Segments:        len(v.tables),
		Generations:     generations,
		MemtableBytes:   mt.Size(),
		MemtableRecords: mt.Len(),
		DiskBytes:       v.diskSize(),
	}
}
