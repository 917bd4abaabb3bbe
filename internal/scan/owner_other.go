//go:build !unix

package scan

import "os"

func ownerIDs(info os.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}
