// Package region models the operating-system side of a brkheap heap: a
// single contiguous extent of address space whose upper boundary (the
// "break") can be moved up to commit memory and down to return it.
package region

//go:generate mockgen -source region.go -destination mocks/region.go

// Region is one contiguous extent of process memory with a movable upper
// boundary.
//
// Break(delta) moves the boundary by delta bytes and returns the boundary
// address as it was before the call: a positive delta commits new memory at
// the boundary, a negative delta returns memory to the operating system, and
// a zero delta queries the boundary without moving it. A growth failure
// returns an error wrapping brkheap.ErrOutOfMemory and leaves the boundary
// where it was. Shrinking below the region start is caller misuse and also
// returns an error.
//
// Implementations perform no locking of their own. The heap serializes every
// Break call behind its allocation guard.
type Region interface {
	Break(delta int) (uintptr, error)
	// Close returns the region's entire reserved extent to the operating
	// system. The region must not be used afterward.
	Close() error
}
