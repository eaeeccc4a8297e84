package heap

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/vkngwrapper/brkheap"
)

// VisitAllBlocks walks the heap's block list in creation order, calling visit
// once per block with the block's payload address, recorded capacity, and
// free status. The walk stops at the first error visit returns and passes it
// back to the caller.
//
// The heap's guard is held for the whole walk: visit must not call back into
// this heap.
func (h *Heap) VisitAllBlocks(visit func(payload unsafe.Pointer, size int, free bool) error) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		err := visit(hdr.payload(), hdr.size, hdr.isFree())
		if err != nil {
			return err
		}
	}

	return nil
}

// AddStatistics sums this heap's current state into the provided statistics
// object.
func (h *Heap) AddStatistics(stats *brkheap.Statistics) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats.BlockCount += h.blockCount
	stats.AllocationCount += h.allocCount

	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		stats.BlockBytes += hdr.size
		if !hdr.isFree() {
			stats.AllocationBytes += hdr.size
		}
	}
}

// AddDetailedStatistics sums this heap's current state into the provided
// statistics object, including free-block counts and size extremes.
func (h *Heap) AddDetailedStatistics(stats *brkheap.DetailedStatistics) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		stats.BlockCount++
		stats.BlockBytes += hdr.size

		if hdr.isFree() {
			stats.AddUnusedRange(hdr.size)
		} else {
			stats.AddAllocation(hdr.size)
		}
	}
}

// PrintDetailedMap writes a JSON dump of the heap's block list to the
// provided writer, suitable for logging when diagnosing fragmentation or
// leaks.
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	obj := writer.Object()
	obj.Name("HeaderSize").Int(HeaderSize)
	obj.Name("HeapBytes").Int(int(h.boundary() - h.base))
	obj.Name("BlockCount").Int(h.blockCount)
	obj.Name("AllocationCount").Int(h.allocCount)

	blocks := obj.Name("Blocks").Array()
	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		block := blocks.Object()
		block.Name("Offset").Int(int(hdr.addr() - h.base))
		block.Name("Size").Int(hdr.size)
		block.Name("Free").Bool(hdr.isFree())
		block.End()
	}
	blocks.End()

	obj.End()
}

// BuildStatsString returns PrintDetailedMap's JSON dump as a string.
func (h *Heap) BuildStatsString() string {
	writer := jwriter.NewWriter()
	h.PrintDetailedMap(&writer)

	return string(writer.Bytes())
}

// Validate checks the heap's internal invariants: the block list must tile
// the region extent between the creation-time boundary and the current one
// with no gaps or overlaps, the tail must terminate the list, the counters
// must match the list, and in debug builds every taken block's margin must be
// intact. It returns an error describing the first violated invariant, or
// nil.
func (h *Heap) Validate() error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.validate()
}

// validate implements Validate. The caller must hold the guard.
func (h *Heap) validate() error {
	if (h.head == 0) != (h.tail == 0) {
		return errors.Newf("heap: the head (%x) and tail (%x) disagree about whether the list is empty", h.head, h.tail)
	}

	boundary := h.boundary()
	if h.head == 0 {
		if boundary != h.base {
			return errors.Newf("heap: the list is empty but the boundary sits %d bytes past the base", boundary-h.base)
		}
		if h.blockCount != 0 || h.allocCount != 0 {
			return errors.Newf("heap: the list is empty but the counters claim %d blocks and %d allocations", h.blockCount, h.allocCount)
		}
		return nil
	}

	var blockCount, allocCount int
	var last *blockHeader

	expected := h.base
	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		if hdr.addr() != expected {
			return errors.Newf("heap: block %d begins at %x but the previous block ends at %x", blockCount, hdr.addr(), expected)
		}
		if hdr.size <= 0 {
			return errors.Newf("heap: block %d has a non-positive capacity of %d bytes", blockCount, hdr.size)
		}
		if hdr.size%PayloadAlignment != 0 {
			return errors.Newf("heap: block %d has a capacity of %d bytes, which breaks payload alignment", blockCount, hdr.size)
		}

		if !hdr.isFree() {
			allocCount++
			if !brkheap.ValidateMagicValue(hdr.payload(), hdr.size) {
				return errors.Newf("heap: block %d has a corrupted margin", blockCount)
			}
		}

		blockCount++
		expected = hdr.end()
		last = hdr
	}

	if last.addr() != h.tail {
		return errors.Newf("heap: the list ends at %x but the tail claims %x", last.addr(), h.tail)
	}
	if expected != boundary {
		return errors.Newf("heap: the last block ends at %x but the boundary sits at %x", expected, boundary)
	}
	if blockCount != h.blockCount {
		return errors.Newf("heap: walked %d blocks but the counter claims %d", blockCount, h.blockCount)
	}
	if allocCount != h.allocCount {
		return errors.Newf("heap: walked %d taken blocks but the counter claims %d", allocCount, h.allocCount)
	}

	return nil
}

// unguardedValidator adapts the heap for brkheap.DebugValidate from inside
// operations that already hold the guard.
type unguardedValidator struct {
	h *Heap
}

func (v unguardedValidator) Validate() error {
	return v.h.validate()
}

// CheckCorruption verifies the debug margin after every taken block's
// payload. It returns nil in production builds, where no margin exists.
func (h *Heap) CheckCorruption() error {
	if brkheap.DebugMargin == 0 {
		return nil
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		if !hdr.isFree() && !brkheap.ValidateMagicValue(hdr.payload(), hdr.size) {
			return errors.Newf("MEMORY CORRUPTION DETECTED AFTER VALIDATED ALLOCATION! Payload %x overran its %d-byte capacity", uintptr(hdr.payload()), hdr.size)
		}
	}

	return nil
}
