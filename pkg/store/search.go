package store

import "lsmstore/pkg/record"

// ScanCallback is called for every record visited by Scan. Returning an
// error stops the scan and is returned by it.
type ScanCallback func(rec record.Record) error

// Scan calls fn for the live records with from <= key < to in key order,
// stopping after limit records when limit is positive.
func (s *Store) Scan(from, to []byte, limit int, fn ScanCallback) (err error) {
	it, err := s.Range(from, to)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()

	for count := 0; it.Valid() && (limit <= 0 || count < limit); it.Next() {
		if err := fn(it.Record()); err != nil {
			return err
		}
		count++
	}
	return it.Err()
}
