// Package syncutil holds small typed wrappers over sync/atomic.
package syncutil

import (
	"sync/atomic"
	"time"
)

// Atomic is a value of type T that can be atomically loaded and stored
// by multiple goroutines safely. The zero Atomic holds the zero T.
type Atomic[T any] struct {
	ptr atomic.Pointer[T]
}

// NewAtomic creates a new Atomic instance initialized with the given value.
func NewAtomic[T any](initial T) *Atomic[T] {
	a := &Atomic[T]{}
	a.Store(initial)
	return a
}

// Load returns the current value.
func (a *Atomic[T]) Load() T {
	if p := a.ptr.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Store sets the value.
func (a *Atomic[T]) Store(value T) {
	a.ptr.Store(&value)
}

// Swap sets the value and returns the previous one.
func (a *Atomic[T]) Swap(value T) T {
	if p := a.ptr.Swap(&value); p != nil {
		return *p
	}
	var zero T
	return zero
}

// AtomicString is a string that can be shared between goroutines.
type AtomicString = Atomic[string]

// NewAtomicString creates a new AtomicString with an initial value.
func NewAtomicString(initial string) *AtomicString {
	return NewAtomic(initial)
}

// AtomicTime is a time.Time that can be shared between goroutines.
type AtomicTime = Atomic[time.Time]

// NewAtomicTime creates a new AtomicTime with an initial value.
func NewAtomicTime(initial time.Time) *AtomicTime {
	return NewAtomic(initial)
}
