package heap

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/vkngwrapper/brkheap"
)

// AllocateZeroed allocates a payload for count elements of elemSize bytes
// each and fills it with zero bytes. It returns (nil, nil) when either
// argument is zero or less, and an error wrapping brkheap.ErrSizeOverflow
// when count*elemSize does not fit in an int. The overflow check happens
// before the heap is touched, so a rejected request never grows the region.
func (h *Heap) AllocateZeroed(count, elemSize int) (unsafe.Pointer, error) {
	if count <= 0 || elemSize <= 0 {
		return nil, nil
	}

	total := count * elemSize
	if elemSize != total/count {
		return nil, errors.Wrapf(brkheap.ErrSizeOverflow, "%d elements of %d bytes each", count, elemSize)
	}

	p, err := h.Allocate(total)
	if err != nil {
		return nil, err
	}

	// A reused block may still hold the previous tenant's bytes.
	buf := unsafe.Slice((*byte)(p), total)
	for i := range buf {
		buf[i] = 0
	}

	return p, nil
}

// Resize changes the payload at p to hold at least newSize bytes. When the
// block's recorded capacity already covers newSize the same payload is
// returned unchanged. Otherwise a new payload is allocated, the old payload's
// full recorded capacity is copied into it, and the old payload is freed.
//
// Resize(nil, newSize) behaves exactly like Allocate(newSize). A newSize of
// zero or less also defers to Allocate, returning (nil, nil) without freeing
// p. When the new allocation fails, the error is returned and p remains
// valid and untouched.
func (h *Heap) Resize(p unsafe.Pointer, newSize int) (unsafe.Pointer, error) {
	if p == nil || newSize <= 0 {
		return h.Allocate(newSize)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.ledger.verifyOwned(p)

	hdr := headerForPayload(p)
	if hdr.size >= newSize {
		return p, nil
	}

	newP, err := h.allocate(newSize)
	if err != nil {
		return nil, err
	}

	copy(
		unsafe.Slice((*byte)(newP), hdr.size),
		unsafe.Slice((*byte)(p), hdr.size),
	)
	h.free(p)

	return newP, nil
}
