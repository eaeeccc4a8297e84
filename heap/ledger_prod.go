//go:build !debug_brkheap

package heap

import "unsafe"

// allocationLedger tracks every live payload address in debug builds so that
// double frees and foreign pointers panic at the call site instead of
// corrupting the block list. Production builds compile this away entirely.
type allocationLedger struct{}

func (l *allocationLedger) init() {}

func (l *allocationLedger) recordAllocate(hdr *blockHeader) {}

func (l *allocationLedger) recordFree(p unsafe.Pointer) {}

func (l *allocationLedger) verifyOwned(p unsafe.Pointer) {}
