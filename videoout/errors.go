package videoout

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Every error returned by this package matches (errors.Is) at most one of
// the following. All are recoverable.
var (
	// ErrInvalidHandle indicates a handle that is out of range, stale, or
	// refers to an output that has been closed.
	ErrInvalidHandle = errors.New(`videoout: invalid handle`)

	// ErrInvalidEventQueue indicates a nil event queue.
	ErrInvalidEventQueue = errors.New(`videoout: invalid event queue`)

	// ErrSlotOccupied indicates an attempt to register a buffer in a slot
	// that is already in use.
	ErrSlotOccupied = errors.New(`videoout: slot occupied`)

	// ErrQueueFull is the backpressure signal of SubmitFlip. It is expected
	// under load, and the caller should retry later.
	ErrQueueFull = errors.New(`videoout: flip queue full`)

	// ErrInvalidValue indicates an out of range argument.
	ErrInvalidValue = errors.New(`videoout: invalid value`)

	// ErrInvalidAddress indicates a buffer address that does not satisfy
	// the alignment required by its attributes.
	ErrInvalidAddress = errors.New(`videoout: invalid address`)

	// ErrInvalidIndex indicates a flip of a buffer index that is not
	// registered.
	ErrInvalidIndex = errors.New(`videoout: invalid buffer index`)

	// ErrResourceBusy indicates no free output, or a resource that is still
	// referenced by a pending flip.
	ErrResourceBusy = errors.New(`videoout: resource busy`)

	// ErrWouldDeadlock is returned by WaitFlipDone when called on the
	// presentation goroutine, which would otherwise wait on itself.
	ErrWouldDeadlock = errors.New(`videoout: wait on presentation goroutine`)
)

func invalidValuef(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidValue, format, args...)
}

// classError associates an error from a collaborator (or another package)
// with one of this package's sentinels. The standard library errors.Is
// matches both. The cockroachdb errors.Is follows Cause, and so matches
// the sentinel only.
type classError struct {
	class error
	cause error
	msg   string
}

func classify(class, cause error, format string, args ...any) error {
	return &classError{
		class: class,
		cause: cause,
		msg:   fmt.Sprintf(format, args...),
	}
}

func (x *classError) Error() string {
	return x.msg + `: ` + x.cause.Error()
}

func (x *classError) Cause() error {
	return x.class
}

func (x *classError) Unwrap() []error {
	return []error{x.class, x.cause}
}
