// Package heap implements a first-fit allocator over a single region.Region.
// Every block ever carved from the region is tracked on one singly-linked
// list in creation order; released blocks are reused before the region is
// asked to grow, and the heap-terminal block is physically returned to the
// operating system on release.
package heap

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/brkheap/internal/utils"
	"github.com/vkngwrapper/brkheap/region"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

const (
	// HeapCreateExternallySynchronized ensures that this heap will not be
	// synchronized internally. The consumer must guarantee the heap is used
	// from only one goroutine at a time or is synchronized by some other
	// mechanism, but performance may improve because the internal mutex is
	// not used.
	HeapCreateExternallySynchronized CreateFlags = 1 << iota
)

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags
}

// Heap carves allocations out of one contiguous region. All methods are safe
// for concurrent use unless the heap was created with
// HeapCreateExternallySynchronized.
type Heap struct {
	region      region.Region
	logger      *slog.Logger
	createFlags CreateFlags

	mutex utils.OptionalRWMutex

	// base is the region boundary at creation time; the heap's blocks tile
	// the extent between base and the current boundary
	base uintptr
	// head and tail are header addresses in creation order, 0 when the list
	// is empty
	head uintptr
	tail uintptr

	blockCount int
	allocCount int

	ledger allocationLedger
}

// New creates a Heap that carves allocations out of r. The heap owns r from
// this point on: no other consumer may move its boundary, and Destroy closes
// it.
//
// logger - Heap lifecycle issues (blocks still taken at Destroy) are
// reported here. May be nil, in which case slog.Default() is used.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, r region.Region, options CreateOptions) (*Heap, error) {
	if r == nil {
		return nil, errors.New("heap: attempted to create a heap without a backing region")
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := r.Break(0)
	if err != nil {
		return nil, errors.Wrap(err, "heap: failed to query the region boundary")
	}

	h := &Heap{
		region:      r,
		logger:      logger,
		createFlags: options.Flags,
		base:        base,
	}
	h.mutex.UseMutex = options.Flags&HeapCreateExternallySynchronized == 0
	h.ledger.init()

	return h, nil
}

// Destroy returns the heap's entire reserved extent to the operating system.
// Every allocation must have been freed first: if taken blocks remain, each
// one is logged, the heap is left intact, and an error is returned.
func (h *Heap) Destroy() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.region == nil {
		return errors.New("heap: this heap has already been destroyed")
	}

	if h.allocCount > 0 {
		for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
			if !hdr.isFree() {
				h.logger.LogAttrs(context.Background(), slog.LevelError,
					"[UNRELEASED MEMORY] block is still taken at heap destruction",
					slog.Uint64("payload", uint64(uintptr(hdr.payload()))),
					slog.Int("size", hdr.size),
				)
			}
		}

		return errors.Newf("heap: %d allocations were not freed before the destruction of this heap", h.allocCount)
	}

	err := h.region.Close()
	h.region = nil
	h.head = 0
	h.tail = 0
	h.blockCount = 0

	return err
}

// AllocationCount returns the number of blocks currently handed to callers.
func (h *Heap) AllocationCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.allocCount
}

// BlockCount returns the number of blocks on the heap's list, free or taken.
func (h *Heap) BlockCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.blockCount
}

// IsEmpty will return true if this heap has no live allocations. Free blocks
// may still be resident.
func (h *Heap) IsEmpty() bool {
	return h.AllocationCount() == 0
}

func (h *Heap) headHeader() *blockHeader {
	if h.head == 0 {
		return nil
	}
	return headerAt(h.head)
}

func (h *Heap) tailHeader() *blockHeader {
	if h.tail == 0 {
		return nil
	}
	return headerAt(h.tail)
}

// boundary returns the region's current break. The query cannot move the
// boundary and is only made while holding the guard.
func (h *Heap) boundary() uintptr {
	b, err := h.region.Break(0)
	if err != nil {
		panic(errors.Wrap(err, "heap: the region failed a boundary query"))
	}
	return b
}

// findFirstFit returns the earliest-created free block whose recorded
// capacity can hold size bytes, or nil when no block qualifies.
func (h *Heap) findFirstFit(size int) *blockHeader {
	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		if hdr.isFree() && hdr.size >= size {
			return hdr
		}
	}
	return nil
}

// appendBlock links a freshly carved block after the tail.
func (h *Heap) appendBlock(hdr *blockHeader) {
	if h.head == 0 {
		h.head = hdr.addr()
	}
	if tail := h.tailHeader(); tail != nil {
		tail.next = hdr.addr()
	}
	h.tail = hdr.addr()
	h.blockCount++
}

// unlinkTail removes the tail block from the list. The list keeps no
// backward links, so this scans from the head for the predecessor.
func (h *Heap) unlinkTail() {
	if h.head == h.tail {
		h.head = 0
		h.tail = 0
		return
	}

	for hdr := h.headHeader(); hdr != nil; hdr = hdr.nextHeader() {
		if hdr.next == h.tail {
			hdr.next = 0
			h.tail = hdr.addr()
			return
		}
	}

	panic("heap: the tail block is not reachable from the head")
}
