//go:build windows

package watchers

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// CheckDiskUsage returns an error when the free space of the volume holding
// path is under the threshold
func CheckDiskUsage(path string, minSpaceRequired float64) error {
	var freeBytesAvailable uint64
	var totalNumberOfBytes uint64
	var totalNumberOfFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(windows.StringToUTF16Ptr(path), &freeBytesAvailable, &totalNumberOfBytes, &totalNumberOfFreeBytes); err != nil {
		return fmt.Errorf("error retrieving disk stats: %w", err)
	}
	return checkThreshold(totalNumberOfBytes, freeBytesAvailable, minSpaceRequired)
}
