package equeue

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound indicates that no record exists for an (Ident, Filter)
	// pair, e.g. the caller raced a deletion.
	ErrNotFound = errors.New(`equeue: event not found`)

	// ErrTimedOut is returned by Queue.Wait if the timeout elapsed without
	// any triggered events.
	ErrTimedOut = errors.New(`equeue: wait timed out`)

	// ErrClosed is returned by operations on a closed Queue.
	ErrClosed = errors.New(`equeue: queue closed`)

	// ErrInvalidArgument is returned for malformed arguments, e.g. a
	// non-positive maximum event count.
	ErrInvalidArgument = errors.New(`equeue: invalid argument`)
)
