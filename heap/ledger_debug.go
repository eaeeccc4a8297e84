//go:build debug_brkheap

package heap

import (
	"unsafe"

	"github.com/dolthub/swiss"
)

// allocationLedger tracks every live payload address in debug builds so that
// double frees and foreign pointers panic at the call site instead of
// corrupting the block list. Production builds compile this away entirely.
type allocationLedger struct {
	live *swiss.Map[uintptr, int]
}

func (l *allocationLedger) init() {
	l.live = swiss.NewMap[uintptr, int](42)
}

func (l *allocationLedger) recordAllocate(hdr *blockHeader) {
	p := uintptr(hdr.payload())
	if _, ok := l.live.Get(p); ok {
		panic("heap: a block was handed out twice without an intervening free")
	}
	l.live.Put(p, hdr.size)
}

func (l *allocationLedger) recordFree(p unsafe.Pointer) {
	if !l.live.Delete(uintptr(p)) {
		panic("heap: freed a pointer this heap does not own")
	}
}

func (l *allocationLedger) verifyOwned(p unsafe.Pointer) {
	if _, ok := l.live.Get(uintptr(p)); !ok {
		panic("heap: resized a pointer this heap does not own")
	}
}
