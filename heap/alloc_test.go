package heap_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/brkheap"
	"github.com/vkngwrapper/brkheap/heap"
)

func TestAllocateRejectsNonPositiveSize(t *testing.T) {
	h := newTestHeap(t, 4096)

	p, err := h.Allocate(0)
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = h.Allocate(-16)
	require.NoError(t, err)
	require.Nil(t, p)

	require.Equal(t, 0, h.BlockCount())
	require.NoError(t, h.Destroy())
}

func TestAllocateRoundTripsData(t *testing.T) {
	h := newTestHeap(t, 1<<16)

	p, err := h.Allocate(300)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%heap.PayloadAlignment)

	buf := unsafe.Slice((*byte)(p), 300)
	for i := range buf {
		buf[i] = byte(i)
	}
	for i := range buf {
		require.Equal(t, byte(i), buf[i])
	}

	require.NoError(t, h.Validate())
	h.Free(p)
	require.NoError(t, h.Destroy())
}

func TestTerminalFreeTrimsTheHeap(t *testing.T) {
	h := newTestHeap(t, 1<<16)

	p1, err := h.Allocate(100)
	require.NoError(t, err)
	require.Equal(t, 1, h.BlockCount())

	// Freeing the only block makes the list empty again rather than leaving
	// a free block behind.
	h.Free(p1)
	require.Equal(t, 0, h.BlockCount())
	require.True(t, h.IsEmpty())
	require.NoError(t, h.Validate())

	// The boundary moved back down, so the next allocation carves the same
	// addresses again.
	p2, err := h.Allocate(100)
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	h.Free(p2)
	require.NoError(t, h.Destroy())
}

func TestFirstFitReusesTheEarliestBlock(t *testing.T) {
	h := newTestHeap(t, 1<<16)

	a, err := h.Allocate(100)
	require.NoError(t, err)
	b, err := h.Allocate(50)
	require.NoError(t, err)
	require.Equal(t, 2, h.BlockCount())

	// a is not heap-terminal while b lives after it, so freeing it leaves
	// the block resident and marked free.
	h.Free(a)
	require.Equal(t, 2, h.BlockCount())
	require.Equal(t, 1, h.AllocationCount())

	// A request that fits must take the free block instead of growing.
	c, err := h.Allocate(30)
	require.NoError(t, err)
	require.Equal(t, a, c)
	require.Equal(t, 2, h.BlockCount())

	// The reused block keeps the capacity it was carved with.
	var stats brkheap.Statistics
	h.AddStatistics(&stats)
	require.Equal(t, brkheap.AlignUp(100, heap.PayloadAlignment)+brkheap.AlignUp(50, heap.PayloadAlignment), stats.AllocationBytes)

	require.NoError(t, h.Validate())
	h.Free(c)
	h.Free(b)
	require.NoError(t, h.Destroy())
}

func TestAllocatePrefersGrowthWhenNoBlockFits(t *testing.T) {
	h := newTestHeap(t, 1<<16)

	a, err := h.Allocate(16)
	require.NoError(t, err)
	b, err := h.Allocate(16)
	require.NoError(t, err)

	h.Free(a)

	// 64 bytes do not fit a's 16-byte block, so the heap grows instead.
	c, err := h.Allocate(64)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
	require.Equal(t, 3, h.BlockCount())

	h.Free(c)
	h.Free(b)

	// a stays resident as a free block: trimming only happens when Free is
	// told about the heap-terminal block.
	require.Equal(t, 1, h.BlockCount())
	require.True(t, h.IsEmpty())
	require.NoError(t, h.Destroy())
}

func TestFreeNilIsANoOp(t *testing.T) {
	h := newTestHeap(t, 4096)

	h.Free(nil)
	h.Free(nil)

	require.Equal(t, 0, h.BlockCount())
	require.NoError(t, h.Destroy())
}

func TestAllocateReportsExhaustion(t *testing.T) {
	h := newTestHeap(t, 512)

	p, err := h.Allocate(64)
	require.NoError(t, err)

	_, err = h.Allocate(1 << 20)
	require.ErrorIs(t, err, brkheap.ErrOutOfMemory)

	// The failure must not disturb existing blocks.
	require.Equal(t, 1, h.BlockCount())
	require.Equal(t, 1, h.AllocationCount())
	require.NoError(t, h.Validate())

	h.Free(p)
	require.NoError(t, h.Destroy())
}
