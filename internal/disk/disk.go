package disk

import (
	"fmt"

	"golang.org/x/sys/unix"

	"dirmanage/internal/metrics"
)

// Usage describes the filesystem holding a path
type Usage struct {
	Path        string
	TotalBytes  int64
	FreeBytes   int64
	UsedBytes   int64
	UsedPercent float64
}

// FreePercent returns the percentage of free space
func (u Usage) FreePercent() float64 {
	return 100.0 - u.UsedPercent
}

// GetUsage returns capacity and free space for the filesystem containing path.
// Free space is what an unprivileged user may allocate (f_bavail).
func GetUsage(path string) (*Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}

	u := &Usage{
		Path:       path,
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
	}
	u.UsedBytes = u.TotalBytes - u.FreeBytes

	if u.TotalBytes > 0 {
		u.UsedPercent = (float64(u.UsedBytes) / float64(u.TotalBytes)) * 100.0
	}

	metrics.UpdateFreeSpacePercent(path, u.FreePercent())
	return u, nil
}
