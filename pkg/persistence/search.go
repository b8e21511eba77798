package persistence

import "bytes"

// lowerBound returns the smallest i such that the key of record i is >= key,
// or the record count when every key is smaller. Each probe reads one offset
// and one key straight from the mapped files.
func lowerBound(data, index []byte, key []byte) (int, error) {
	lo, hi := 0, len(index)/offsetSize
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		off, err := offsetAt(index, mid, len(data))
		if err != nil {
			return 0, err
		}
		probe, err := keyAt(data, off)
		if err != nil {
			return 0, err
		}
		if bytes.Compare(probe, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// leftBound is lowerBound used for an inclusive lower key. found is false
// when key is greater than every stored key, which makes the range empty.
func leftBound(data, index []byte, key []byte) (i int, found bool, err error) {
	i, err = lowerBound(data, index, key)
	if err != nil {
		return 0, false, err
	}
	return i, i < len(index)/offsetSize, nil
}

// rightBound is lowerBound used for an exclusive upper key. A result equal to
// the record count means the range runs to the end of the data file.
func rightBound(data, index []byte, key []byte) (int, error) {
	return lowerBound(data, index, key)
}

// byteRange resolves [from, to) into the byte span [start, end) of data that
// holds exactly the qualifying records. A nil bound is open.
func byteRange(data, index []byte, from, to []byte) (start, end int, err error) {
	end = len(data)
	count := len(index) / offsetSize

	if from != nil {
		i, found, err := leftBound(data, index, from)
		if err != nil {
			return 0, 0, err
		}
		if !found {
			return end, end, nil
		}
		if start, err = offsetAt(index, i, len(data)); err != nil {
			return 0, 0, err
		}
	}

	if to != nil {
		i, err := rightBound(data, index, to)
		if err != nil {
			return 0, 0, err
		}
		if i < count {
			if end, err = offsetAt(index, i, len(data)); err != nil {
				return 0, 0, err
			}
		}
	}

	if end < start {
		end = start
	}
	return start, end, nil
}
