package heap

import (
	"unsafe"

	"github.com/vkngwrapper/brkheap"
)

// PayloadAlignment is the fixed minimum alignment guaranteed for every
// payload address this package hands to a caller.
const PayloadAlignment = 16

// HeaderSize is the fixed number of bytes between a block's header address
// and its payload address. It is the header struct's size rounded up to
// PayloadAlignment so that payloads inherit the alignment of the region
// start.
const HeaderSize = (int(unsafe.Sizeof(blockHeader{})) + PayloadAlignment - 1) &^ (PayloadAlignment - 1)

// blockHeader immediately precedes every block's payload in heap memory.
// This file is the only place that converts between the two addresses.
type blockHeader struct {
	// size is the payload capacity in bytes, fixed when the block was
	// carved. Reuse never updates it, so it may exceed the request a block
	// is currently serving.
	size int
	// next is the header address of the next block in creation order, 0 at
	// the tail
	next uintptr
	free uint32
}

// headerForPayload recovers the header for a payload address previously
// returned by this package. Any other address is undefined behavior, by
// contract.
func headerForPayload(p unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Add(p, -HeaderSize))
}

func headerAt(addr uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(addr))
}

func (h *blockHeader) addr() uintptr {
	return uintptr(unsafe.Pointer(h))
}

// payload returns the caller-visible address of this block.
func (h *blockHeader) payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), HeaderSize)
}

// footprint is the number of heap bytes the block occupies: header, payload
// capacity, and the debug margin when one is compiled in.
func (h *blockHeader) footprint() int {
	return HeaderSize + h.size + brkheap.DebugMargin
}

// end is the address one past the block's last byte. The heap-terminal
// block's end equals the region boundary.
func (h *blockHeader) end() uintptr {
	return h.addr() + uintptr(h.footprint())
}

func (h *blockHeader) markFree() {
	h.free = 1
}

func (h *blockHeader) markTaken() {
	h.free = 0
}

func (h *blockHeader) isFree() bool {
	return h.free != 0
}

func (h *blockHeader) nextHeader() *blockHeader {
	if h.next == 0 {
		return nil
	}
	return headerAt(h.next)
}
