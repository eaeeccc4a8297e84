package region_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/brkheap"
	"github.com/vkngwrapper/brkheap/region"
)

func TestBoundaryProtocol(t *testing.T) {
	mapped, err := region.Reserve(1 << 20)
	require.NoError(t, err)

	tests := []struct {
		name string
		r    region.Region
	}{
		{name: "mapped", r: mapped},
		// The mapped region is available on all normal platforms. Rather
		// than requiring an exotic target to exercise the slice region, we
		// just go ahead and test it in addition to the native one.
		{name: "slice", r: region.NewSlice(1 << 20)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			r := tc.r
			defer func() {
				require.NoError(t, r.Close())
			}()

			base, err := r.Break(0)
			require.NoError(t, err)
			require.NotZero(t, base)

			prior, err := r.Break(64)
			require.NoError(t, err)
			require.Equal(t, base, prior)

			// Committed memory must be writable and read back intact.
			buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), 64)
			for i := range buf {
				buf[i] = 0xA5
			}
			require.Equal(t, byte(0xA5), buf[63])

			prior, err = r.Break(100)
			require.NoError(t, err)
			require.Equal(t, base+64, prior)

			boundary, err := r.Break(0)
			require.NoError(t, err)
			require.Equal(t, base+164, boundary)

			prior, err = r.Break(-100)
			require.NoError(t, err)
			require.Equal(t, base+164, prior)

			boundary, err = r.Break(0)
			require.NoError(t, err)
			require.Equal(t, base+64, boundary)

			_, err = r.Break(-65)
			require.Error(t, err)
			require.NotErrorIs(t, err, brkheap.ErrOutOfMemory)

			_, err = r.Break(1 << 21)
			require.ErrorIs(t, err, brkheap.ErrOutOfMemory)

			// A failed call must leave the boundary where it was.
			boundary, err = r.Break(0)
			require.NoError(t, err)
			require.Equal(t, base+64, boundary)
		})
	}
}

func TestSliceRegrowthReadsZero(t *testing.T) {
	r := region.NewSlice(4096)
	defer func() {
		require.NoError(t, r.Close())
	}()

	base, err := r.Break(16)
	require.NoError(t, err)

	buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), 16)
	for i := range buf {
		buf[i] = 0xFF
	}

	_, err = r.Break(-16)
	require.NoError(t, err)

	_, err = r.Break(16)
	require.NoError(t, err)

	for i := range buf {
		require.Equal(t, byte(0), buf[i])
	}
}

func TestReserveRejectsNonPositiveCapacity(t *testing.T) {
	_, err := region.Reserve(0)
	require.Error(t, err)

	_, err = region.Reserve(-4096)
	require.Error(t, err)
}
