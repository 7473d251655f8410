//go:build !windows

package watchers

import (
	"fmt"
	"syscall"
)

// CheckDiskUsage returns an error when the free space of the filesystem
// holding path is under the threshold
func CheckDiskUsage(path string, minSpaceRequired float64) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return fmt.Errorf("error retrieving disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)

	return checkThreshold(total, free, minSpaceRequired)
}
