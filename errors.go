package brkheap

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if
// the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrOutOfMemory is returned, usually wrapped with context, when the heap
// region cannot grow far enough to satisfy a request. It is the only
// recoverable allocation failure: blocks already owned by the caller are
// unaffected.
var ErrOutOfMemory error = errors.New("the heap region cannot grow any further")

// ErrSizeOverflow is returned when an allocation size computation overflows
// the platform int. No memory is requested when it is detected.
var ErrSizeOverflow error = errors.New("allocation size computation overflowed")
