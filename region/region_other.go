//go:build !unix && !windows

package region

import "github.com/pkg/errors"

// Reserve creates a Region with max bytes of capacity. Platforms without
// page-level virtual memory control fall back to a Go-slice extent, which
// reserves and commits the full capacity immediately.
func Reserve(max int) (Region, error) {
	if max <= 0 {
		return nil, errors.Errorf("region: reserved capacity must be positive, got %d", max)
	}
	return NewSlice(max), nil
}
