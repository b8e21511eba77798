package store

import (
	"errors"
	"sync"

	"lsmstore/pkg/iterator"
)

// pinnedIterator keeps a version alive while its segments are being read and
// unpins it as soon as iteration ends.
type pinnedIterator struct {
	iterator.Iterator

	v          *version
	once       sync.Once
	releaseErr error
}

func newPinnedIterator(it iterator.Iterator, v *version) *pinnedIterator {
	p := &pinnedIterator{Iterator: it, v: v}
	if !it.Valid() {
		p.unpin()
	}
	return p
}

func (p *pinnedIterator) Next() {
	if !p.Iterator.Valid() {
		return
	}
	p.Iterator.Next()
	if !p.Iterator.Valid() {
		p.unpin()
	}
}

func (p *pinnedIterator) Err() error {
	return errors.Join(p.Iterator.Err(), p.releaseErr)
}

func (p *pinnedIterator) Close() error {
	err := p.Iterator.Close()
	p.unpin()
	return errors.Join(err, p.releaseErr)
}

func (p *pinnedIterator) unpin() {
	p.once.Do(func() {
		p.releaseErr = p.v.release()
	})
}
