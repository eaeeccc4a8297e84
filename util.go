// Package brkheap provides the shared pieces of the brkheap allocator:
// alignment helpers, heap statistics, sentinel errors, and the debug-build
// validation hooks used by the region and heap packages.
package brkheap

import (
	cerrors "github.com/cockroachdb/errors"
)

// Number covers the integer types accepted by the alignment and
// power-of-two helpers.
type Number interface {
	~int | ~uint
}

// CheckPow2 returns an error wrapping PowerOfTwoError if number is not a
// power of two. Zero is not a power of two.
func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the nearest multiple of alignment, which must
// be a power of two.
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}
