package heap

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/vkngwrapper/brkheap"
)

// Allocate hands out a payload of at least size bytes, aligned to
// PayloadAlignment. The earliest-created free block that can hold the
// request is reused before the region is asked to grow; a reused block
// keeps the capacity it was carved with.
//
// A size of zero or less returns (nil, nil) with no side effects. When the
// region cannot grow far enough, Allocate returns nil and an error wrapping
// brkheap.ErrOutOfMemory; blocks already owned by the caller are unaffected.
func (h *Heap) Allocate(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, nil
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.allocate(size)
}

// allocate implements Allocate. The caller must hold the guard.
func (h *Heap) allocate(size int) (unsafe.Pointer, error) {
	brkheap.DebugValidate(unguardedValidator{h})

	if hdr := h.findFirstFit(size); hdr != nil {
		// The recorded capacity stays whatever the block was carved with;
		// the fit check guarantees it covers this request.
		hdr.markTaken()
		h.allocCount++

		brkheap.WriteMagicValue(hdr.payload(), hdr.size)
		h.ledger.recordAllocate(hdr)
		return hdr.payload(), nil
	}

	carved := brkheap.AlignUp(size, PayloadAlignment)
	total := HeaderSize + carved + brkheap.DebugMargin

	prior, err := h.region.Break(total)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to grow the heap by %d bytes", total)
	}

	hdr := headerAt(prior)
	hdr.size = carved
	hdr.next = 0
	hdr.markTaken()
	h.appendBlock(hdr)
	h.allocCount++

	brkheap.WriteMagicValue(hdr.payload(), hdr.size)
	h.ledger.recordAllocate(hdr)
	return hdr.payload(), nil
}

// Free releases a payload previously returned by this heap. If the block is
// heap-terminal its memory is physically returned to the operating system;
// otherwise the block is marked free for reuse. Adjacent free blocks are
// never coalesced.
//
// Free(nil) is a no-op and safe to call any number of times. Passing any
// address this heap did not return, or a payload that was already freed, is
// undefined behavior, by contract.
func (h *Heap) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.free(p)
}

// free implements Free. The caller must hold the guard.
func (h *Heap) free(p unsafe.Pointer) {
	brkheap.DebugValidate(unguardedValidator{h})
	h.ledger.recordFree(p)

	hdr := headerForPayload(p)
	h.allocCount--

	if hdr.end() == h.boundary() {
		// Heap-terminal block: unlink it and move the boundary back down so
		// the memory actually leaves the process.
		h.unlinkTail()
		h.blockCount--

		_, err := h.region.Break(-hdr.footprint())
		if err != nil {
			panic(errors.Wrap(err, "failed to trim the heap-terminal block"))
		}
		return
	}

	hdr.markFree()
}
