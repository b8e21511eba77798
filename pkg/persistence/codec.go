package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"lsmstore/pkg/dberrors"
	"lsmstore/pkg/record"
)

// Data file record layout (big-endian):
//
//	int32 keyLen | key | int32 valueLen (-1 = tombstone) | value
//
// Index file layout: one int32 offset per record, pointing at its keyLen.
const (
	sizeFieldSize  = 4
	offsetSize     = 4
	tombstoneValue = -1

	// tombstoneValue as written on disk.
	tombstoneWire = ^uint32(0)
)

// encodeRecord appends rec to w and returns the number of bytes written.
func encodeRecord(w *bufio.Writer, rec record.Record) (int, error) {
	var lenBuff [sizeFieldSize]byte

	key := rec.Key()
	if len(key) > math.MaxInt32 {
		return 0, fmt.Errorf("key too large: %d", len(key))
	}
	binary.BigEndian.PutUint32(lenBuff[:], uint32(len(key)))
	if _, err := w.Write(lenBuff[:]); err != nil {
		return 0, err
	}
	if _, err := w.Write(key); err != nil {
		return 0, err
	}

	if rec.IsTombstone() {
		binary.BigEndian.PutUint32(lenBuff[:], tombstoneWire)
		if _, err := w.Write(lenBuff[:]); err != nil {
			return 0, err
		}
		return 2*sizeFieldSize + len(key), nil
	}

	value := rec.Value()
	if len(value) > math.MaxInt32 {
		return 0, fmt.Errorf("value too large: %d", len(value))
	}
	binary.BigEndian.PutUint32(lenBuff[:], uint32(len(value)))
	if _, err := w.Write(lenBuff[:]); err != nil {
		return 0, err
	}
	if _, err := w.Write(value); err != nil {
		return 0, err
	}
	return 2*sizeFieldSize + len(key) + len(value), nil
}

func encodeOffset(w *bufio.Writer, offset int64) error {
	if offset > math.MaxInt32 {
		return fmt.Errorf("segment exceeds %d bytes", math.MaxInt32)
	}
	var buf [offsetSize]byte
	binary.BigEndian.PutUint32(buf[:], uint32(offset))
	_, err := w.Write(buf[:])
	return err
}

// readInt32 reads the length field at off, checking it lies inside data.
func readInt32(data []byte, off int) (int32, error) {
	if off < 0 || off+sizeFieldSize > len(data) {
		return 0, fmt.Errorf("%w: length field at %d beyond %d bytes", dberrors.ErrCorruptFormat, off, len(data))
	}
	return int32(binary.BigEndian.Uint32(data[off:])), nil
}

// readBytes returns data[off:off+n] after validating the span.
func readBytes(data []byte, off int, n int32) ([]byte, error) {
	if n < 0 || off+int(n) > len(data) {
		return nil, fmt.Errorf("%w: %d bytes at %d beyond %d bytes", dberrors.ErrCorruptFormat, n, off, len(data))
	}
	return data[off : off+int(n)], nil
}

// keyAt returns the key of the record starting at off without copying it.
func keyAt(data []byte, off int) ([]byte, error) {
	keyLen, err := readInt32(data, off)
	if err != nil {
		return nil, err
	}
	return readBytes(data, off+sizeFieldSize, keyLen)
}

// decodeRecord decodes the record starting at off and returns the offset of
// the following record. Key and value are copied out of data, so they stay
// valid after the mapping is released.
func decodeRecord(data []byte, off int) (record.Record, int, error) {
	key, err := keyAt(data, off)
	if err != nil {
		return record.Record{}, 0, err
	}
	off += sizeFieldSize + len(key)

	valueLen, err := readInt32(data, off)
	if err != nil {
		return record.Record{}, 0, err
	}
	off += sizeFieldSize

	if valueLen == tombstoneValue {
		return record.Tombstone(bytes.Clone(key)), off, nil
	}

	value, err := readBytes(data, off, valueLen)
	if err != nil {
		return record.Record{}, 0, err
	}
	return record.Of(bytes.Clone(key), bytes.Clone(value)), off + len(value), nil
}

// offsetAt returns the i-th offset stored in index, validated against dataLen.
func offsetAt(index []byte, i int, dataLen int) (int, error) {
	pos := i * offsetSize
	if i < 0 || pos+offsetSize > len(index) {
		return 0, fmt.Errorf("%w: index slot %d beyond %d bytes", dberrors.ErrCorruptFormat, i, len(index))
	}
	off := int(int32(binary.BigEndian.Uint32(index[pos:])))
	if off < 0 || off >= dataLen {
		return 0, fmt.Errorf("%w: offset %d outside data of %d bytes", dberrors.ErrCorruptFormat, off, dataLen)
	}
	return off, nil
}
