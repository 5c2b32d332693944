// Package handle implements a small, fixed capacity table of values, keyed
// by generation-checked handles.
//
// A Handle encodes the slot index and the generation of the slot at the time
// of insertion, meaning a handle that outlives its entry (e.g. used after
// close) is reliably rejected, even if the slot has since been reused. The
// zero Handle is never issued, and may be used as a "no handle" marker.
package handle

import (
	"sync"

	"github.com/cockroachdb/errors"
)

const (
	indexBits = 12
	indexMask = 1<<indexBits - 1
	genMask   = 1<<(31-indexBits) - 1

	// MaxCapacity is the largest capacity supported by New.
	MaxCapacity = indexMask
)

// ErrFull is returned by Table.Insert if every slot is in use.
var ErrFull = errors.New(`handle: table full`)

type (
	// Handle identifies an entry in a Table. Valid handles are always
	// positive, which allows them to be passed through interfaces that use
	// negative values as error codes.
	Handle int32

	// Table is a fixed capacity arena, safe for concurrent use.
	// Instances must be initialized using the New factory.
	Table[T any] struct {
		mu    sync.Mutex
		slots []slot[T]
		count int
	}

	slot[T any] struct {
		value T
		gen   uint32
		used  bool
	}
)

// New initializes a Table with the given capacity, which must be within the
// range [1, MaxCapacity], or New will panic.
func New[T any](capacity int) *Table[T] {
	if capacity < 1 || capacity > MaxCapacity {
		panic(`handle: invalid capacity`)
	}
	x := Table[T]{slots: make([]slot[T], capacity)}
	for i := range x.slots {
		x.slots[i].gen = 1
	}
	return &x
}

// Index returns the slot index encoded in the handle, or -1 for an invalid
// handle. It does not check the handle against any table.
func (h Handle) Index() int {
	if h <= 0 {
		return -1
	}
	return int(h&indexMask) - 1
}

func (h Handle) generation() uint32 {
	return uint32(h>>indexBits) & genMask
}

func makeHandle(index int, gen uint32) Handle {
	return Handle(gen&genMask)<<indexBits | Handle(index+1)
}

// Insert stores value in the lowest free slot, returning ErrFull if there are
// none.
func (x *Table[T]) Insert(value T) (Handle, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.slots {
		s := &x.slots[i]
		if s.used {
			continue
		}
		s.used = true
		s.value = value
		x.count++
		return makeHandle(i, s.gen), nil
	}
	return 0, ErrFull
}

// Get returns the value for h, if h refers to a live entry.
func (x *Table[T]) Get(h Handle) (value T, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if s := x.lookup(h); s != nil {
		return s.value, true
	}
	return value, false
}

// Remove deletes the entry for h, returning the removed value. The slot's
// generation is advanced, invalidating h (and any copies of it).
func (x *Table[T]) Remove(h Handle) (value T, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s := x.lookup(h)
	if s == nil {
		return value, false
	}
	value = s.value
	var zero T
	s.value = zero
	s.used = false
	s.gen = (s.gen + 1) & genMask
	if s.gen == 0 {
		s.gen = 1
	}
	x.count--
	return value, true
}

// Len returns the number of live entries.
func (x *Table[T]) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count
}

// Cap returns the capacity of the table.
func (x *Table[T]) Cap() int {
	return len(x.slots)
}

// Snapshot returns the live handles and values, in slot order. The table
// lock is not held while the caller inspects the result.
func (x *Table[T]) Snapshot() ([]Handle, []T) {
	x.mu.Lock()
	defer x.mu.Unlock()
	handles := make([]Handle, 0, x.count)
	values := make([]T, 0, x.count)
	for i := range x.slots {
		if s := &x.slots[i]; s.used {
			handles = append(handles, makeHandle(i, s.gen))
			values = append(values, s.value)
		}
	}
	return handles, values
}

func (x *Table[T]) lookup(h Handle) *slot[T] {
	i := h.Index()
	if i < 0 || i >= len(x.slots) {
		return nil
	}
	if s := &x.slots[i]; s.used && s.gen == h.generation() {
		return s
	}
	return nil
}
