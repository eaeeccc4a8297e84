//go:build windows

package region

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/vkngwrapper/brkheap"
)

// https://cs.opensource.google/go/x/sys/+/refs/tags/v0.7.0:windows/syscall_windows.go
const pageSize = 4096

// virtualRegion reserves its maximum extent of address space up front with
// VirtualAlloc, so the region never moves, and commits physical pages only
// as the boundary passes them:
//   - brk is the boundary offset within the reservation
//   - committed is brk rounded up to a page boundary; the prefix of the
//     reservation that is committed read-write
type virtualRegion struct {
	addr      uintptr
	reserved  int
	brk       int
	committed int
}

// Reserve creates a Region with max bytes of capacity. The address space is
// claimed immediately without committing it; physical memory is committed
// and decommitted page by page as the boundary moves.
func Reserve(max int) (Region, error) {
	if max <= 0 {
		return nil, errors.Errorf("region: reserved capacity must be positive, got %d", max)
	}

	reserved := brkheap.AlignUp(max, pageSize)
	addr, err := windows.VirtualAlloc(0, uintptr(reserved), windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrapf(brkheap.ErrOutOfMemory, "region: failed to reserve %d bytes of address space: %v", reserved, err)
	}

	return &virtualRegion{addr: addr, reserved: reserved}, nil
}

func (r *virtualRegion) Break(delta int) (uintptr, error) {
	prior := r.addr + uintptr(r.brk)
	if delta == 0 {
		return prior, nil
	}

	newBreak := r.brk + delta
	if newBreak < 0 {
		return 0, errors.Errorf("region: cannot move the boundary %d bytes below the region start", -newBreak)
	}
	if newBreak > r.reserved {
		return 0, errors.Wrapf(brkheap.ErrOutOfMemory, "region: a boundary of %d bytes would exceed the reserved extent of %d bytes", newBreak, r.reserved)
	}

	newCommitted := brkheap.AlignUp(newBreak, pageSize)
	if newCommitted > r.committed {
		_, err := windows.VirtualAlloc(r.addr+uintptr(r.committed), uintptr(newCommitted-r.committed), windows.MEM_COMMIT, windows.PAGE_READWRITE)
		if err != nil {
			return 0, errors.Wrapf(brkheap.ErrOutOfMemory, "region: failed to commit %d bytes at the boundary: %v", newCommitted-r.committed, err)
		}
		r.committed = newCommitted
	} else if newCommitted < r.committed {
		err := windows.VirtualFree(r.addr+uintptr(newCommitted), uintptr(r.committed-newCommitted), windows.MEM_DECOMMIT)
		if err != nil {
			panic(errors.Wrap(err, "region: failed to decommit released pages"))
		}
		r.committed = newCommitted
	}

	r.brk = newBreak
	return prior, nil
}

func (r *virtualRegion) Close() error {
	if r.addr == 0 {
		return nil
	}

	err := windows.VirtualFree(r.addr, 0, windows.MEM_RELEASE)
	r.addr = 0
	return errors.Wrap(err, "region: failed to release the reserved extent")
}
