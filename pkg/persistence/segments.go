package persistence

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lsmstore/pkg/dberrors"
)

const (
	// IndexSuffix distinguishes an index file from its data file.
	IndexSuffix = "i"
	// TempSuffix marks files that have not been renamed into place yet.
	TempSuffix = ".tmp"
)

// DataPath returns the data file path of the given generation.
func DataPath(dir string, generation int) string {
	return filepath.Join(dir, strconv.Itoa(generation))
}

// IndexPath returns the index file path of the given generation.
func IndexPath(dir string, generation int) string {
	return DataPath(dir, generation) + IndexSuffix
}

// parseGeneration parses a non-negative decimal generation. Names with signs,
// leading zeros or anything else are not engine-owned.
func parseGeneration(name string) (int, bool) {
	if name == "" || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	gen, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// ListGenerations returns the generations present in dir in ascending order.
//
// The data file rename is the commit point of a segment write, so an index
// file without its data file belongs to an interrupted write and is removed.
// A data file without an index cannot be served and fails the listing.
func ListGenerations(dir string, logger *slog.Logger) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list segment directory: %w", err)
	}

	data := make(map[int]bool)
	index := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if gen, ok := parseGeneration(strings.TrimSuffix(name, IndexSuffix)); ok && strings.HasSuffix(name, IndexSuffix) {
			index[gen] = true
			continue
		}
		if gen, ok := parseGeneration(name); ok {
			data[gen] = true
		}
	}

	generations := make([]int, 0, len(data))
	for gen := range data {
		if !index[gen] {
			return nil, fmt.Errorf("%w: segment %d has no index file", dberrors.ErrCorruptFormat, gen)
		}
		generations = append(generations, gen)
	}
	for gen := range index {
		if data[gen] {
			continue
		}
		path := IndexPath(dir, gen)
		logger.Warn("removing index file of an unfinished segment", "path", path)
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove orphan index: %w", err)
		}
	}

	sort.Ints(generations)
	return generations, nil
}

// RemoveTempFiles deletes files left behind by writes that never reached
// their final rename.
func RemoveTempFiles(dir string, logger *slog.Logger) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+TempSuffix))
	if err != nil {
		return err
	}
	for _, path := range matches {
		logger.Warn("removing stale temporary segment file", "path", path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove temporary file: %w", err)
		}
	}
	return nil
}

// syncDir fsyncs dir so renames inside it are durable. A variable so tests
// can fail it.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory %s: %w", dir, err)
	}
	return nil
}
