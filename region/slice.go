package region

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/vkngwrapper/brkheap"
)

// sliceRegion is a Region backed by ordinary Go memory:
//   - len(buf) is the current boundary offset
//   - cap(buf) is the reserved extent
type sliceRegion struct {
	buf []byte
}

// NewSlice creates a Region backed by a Go byte slice with a fixed capacity
// of max bytes. It backs Reserve on platforms without page-level virtual
// memory control.
//
// A heap carves block headers directly into region memory, and checkptr does
// not permit reconstructing those pointers inside a Go allocation: heaps over
// a slice region crash under -race or -d=checkptr. Use Reserve, whose mapped
// memory lives outside the Go heap, when running under either.
func NewSlice(max int) Region {
	return &sliceRegion{buf: make([]byte, 0, max)}
}

func (r *sliceRegion) start() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(r.buf)))
}

func (r *sliceRegion) Break(delta int) (uintptr, error) {
	prior := r.start() + uintptr(len(r.buf))
	if delta == 0 {
		return prior, nil
	}

	newBreak := len(r.buf) + delta
	if newBreak < 0 {
		return 0, errors.Errorf("region: cannot move the boundary %d bytes below the region start", -newBreak)
	}
	if newBreak > cap(r.buf) {
		return 0, errors.Wrapf(brkheap.ErrOutOfMemory, "region: a boundary of %d bytes would exceed the reserved extent of %d bytes", newBreak, cap(r.buf))
	}

	if delta > 0 {
		// Shrinking does not scrub the slice, so regrown bytes must be wiped
		// here to read back the way freshly committed pages would.
		grown := r.buf[len(r.buf):newBreak]
		for i := range grown {
			grown[i] = 0
		}
	}

	r.buf = r.buf[:newBreak]
	return prior, nil
}

func (r *sliceRegion) Close() error {
	r.buf = nil
	return nil
}
