//go:build unix

package region

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/vkngwrapper/brkheap"
)

var pageSize = unix.Getpagesize()

// mappedRegion reserves its maximum extent of address space up front, so the
// region never moves, and commits physical pages only as the boundary passes
// them:
//   - buf covers the entire reserved mapping
//   - brk is the boundary offset within buf
//   - committed is brk rounded up to a page boundary; the prefix of buf that
//     is mapped PROT_READ|PROT_WRITE
type mappedRegion struct {
	buf       []byte
	brk       int
	committed int
}

// Reserve creates a Region with max bytes of capacity. The address space is
// claimed immediately with an inaccessible anonymous mapping; physical
// memory is committed and released page by page as the boundary moves.
func Reserve(max int) (Region, error) {
	if max <= 0 {
		return nil, errors.Errorf("region: reserved capacity must be positive, got %d", max)
	}
	brkheap.DebugCheckPow2(uint(pageSize), "system page size")

	reserved := brkheap.AlignUp(max, uint(pageSize))
	buf, err := unix.Mmap(-1, 0, reserved, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(brkheap.ErrOutOfMemory, "region: failed to reserve %d bytes of address space: %v", reserved, err)
	}

	return &mappedRegion{buf: buf}, nil
}

func (r *mappedRegion) start() uintptr {
	return uintptr(unsafe.Pointer(&r.buf[0]))
}

func (r *mappedRegion) Break(delta int) (uintptr, error) {
	prior := r.start() + uintptr(r.brk)
	if delta == 0 {
		return prior, nil
	}

	newBreak := r.brk + delta
	if newBreak < 0 {
		return 0, errors.Errorf("region: cannot move the boundary %d bytes below the region start", -newBreak)
	}
	if newBreak > len(r.buf) {
		return 0, errors.Wrapf(brkheap.ErrOutOfMemory, "region: a boundary of %d bytes would exceed the reserved extent of %d bytes", newBreak, len(r.buf))
	}

	newCommitted := brkheap.AlignUp(newBreak, uint(pageSize))
	if newCommitted > r.committed {
		err := unix.Mprotect(r.buf[r.committed:newCommitted], unix.PROT_READ|unix.PROT_WRITE)
		if err != nil {
			return 0, errors.Wrapf(brkheap.ErrOutOfMemory, "region: failed to commit %d bytes at the boundary: %v", newCommitted-r.committed, err)
		}
		r.committed = newCommitted
	} else if newCommitted < r.committed {
		// Hand the pages back before revoking access so the OS can reclaim
		// them immediately.
		err := unix.Madvise(r.buf[newCommitted:r.committed], unix.MADV_DONTNEED)
		if err != nil {
			panic(errors.Wrap(err, "region: failed to release committed pages"))
		}
		err = unix.Mprotect(r.buf[newCommitted:r.committed], unix.PROT_NONE)
		if err != nil {
			panic(errors.Wrap(err, "region: failed to revoke access to released pages"))
		}
		r.committed = newCommitted
	}

	r.brk = newBreak
	return prior, nil
}

func (r *mappedRegion) Close() error {
	if r.buf == nil {
		return nil
	}

	err := unix.Munmap(r.buf)
	r.buf = nil
	return errors.Wrap(err, "region: failed to unmap the reserved extent")
}
