package heap_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/region"
)

// newTestHeap backs the heap with a mapped region: heaps carve block headers
// directly into region memory, which is only legal under checkptr when that
// memory lives outside the Go heap.
func newTestHeap(t *testing.T, max int) *heap.Heap {
	t.Helper()

	r, err := region.Reserve(max)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard))
	h, err := heap.New(logger, r, heap.CreateOptions{})
	require.NoError(t, err)

	return h
}

func TestNewRequiresRegion(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	_, err := heap.New(logger, nil, heap.CreateOptions{})
	require.Error(t, err)
}

func TestNewAcceptsNilLogger(t *testing.T) {
	r, err := region.Reserve(4096)
	require.NoError(t, err)

	h, err := heap.New(nil, r, heap.CreateOptions{})
	require.NoError(t, err)

	p, err := h.Allocate(16)
	require.NoError(t, err)
	h.Free(p)

	require.NoError(t, h.Destroy())
}

func TestDestroyRefusesLiveAllocations(t *testing.T) {
	logOutput := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logOutput))

	r, err := region.Reserve(4096)
	require.NoError(t, err)

	h, err := heap.New(logger, r, heap.CreateOptions{})
	require.NoError(t, err)

	p, err := h.Allocate(32)
	require.NoError(t, err)

	err = h.Destroy()
	require.Error(t, err)
	require.Contains(t, logOutput.String(), "UNRELEASED MEMORY")

	// The refusal must leave the heap usable.
	h.Free(p)
	require.True(t, h.IsEmpty())
	require.NoError(t, h.Destroy())
}

func TestDestroyTwiceErrors(t *testing.T) {
	h := newTestHeap(t, 4096)

	require.NoError(t, h.Destroy())
	require.Error(t, h.Destroy())
}
