package transport

import "errors"

// Transport package errors.
var (
	// ErrClosed is returned when writing to a closed link.
	ErrClosed = errors.New("transport: link closed")

	// ErrShortWrite is returned when a serial write accepted fewer bytes
	// than requested.
	ErrShortWrite = errors.New("transport: short write")
)
