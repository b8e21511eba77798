package dberrors

import "errors"

var (
	ErrClosed          = errors.New("lsmstore: closed")
	ErrInvalidArgument = errors.New("lsmstore: invalid argument")
	// ErrCorruptFormat is returned when a length prefix or offset of a segment
	// decodes outside the bounds of its file.
	ErrCorruptFormat = errors.New("lsmstore: corrupt segment format")
)
