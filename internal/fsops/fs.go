package fsops

import (
	"os"
	"time"
)

// FileSystem abstracts the syscalls the walker and the engine perform.
// Enables fault injection in tests (permission denial, cross-device rename)
// without depending on the privileges of the test process.
type FileSystem interface {
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Stat(name string) (os.FileInfo, error)
	Lstat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Mkdir(name string, perm os.FileMode) error
	Chmod(name string, mode os.FileMode) error
	Chtimes(name string, atime, mtime time.Time) error
}
