//go:build !linux

package fsops

import (
	"os"
	"time"
)

// accessTime falls back to the modification time where atime is not exposed.
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
