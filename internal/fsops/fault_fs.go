package fsops

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FaultFS wraps a FileSystem for testing.
// Records every mutating call and fails configured paths with configured
// errors, so partial-failure paths can be exercised even when the test
// process runs as root.
type FaultFS struct {
	base FileSystem

	mu          sync.Mutex
	calls       []string
	removeErrs  map[string]error
	lstatErrs   map[string]error
	readDirErrs map[string]error
	renameErr   error
}

// NewFaultFS wraps base; nil means the real filesystem.
func NewFaultFS(base FileSystem) *FaultFS {
	if base == nil {
		base = OSFileSystem{}
	}
	return &FaultFS{
		base:        base,
		removeErrs:  make(map[string]error),
		lstatErrs:   make(map[string]error),
		readDirErrs: make(map[string]error),
	}
}

// FailRemove makes every Remove of path return err.
func (f *FaultFS) FailRemove(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeErrs[filepath.Clean(path)] = err
}

// FailLstat makes every Lstat of path return err.
func (f *FaultFS) FailLstat(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lstatErrs[filepath.Clean(path)] = err
}

// FailReadDir makes every ReadDir of path return err.
func (f *FaultFS) FailReadDir(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDirErrs[filepath.Clean(path)] = err
}

// FailRename makes every Rename return err (e.g. syscall.EXDEV).
func (f *FaultFS) FailRename(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renameErr = err
}

// Calls returns a copy of the recorded mutating calls ("rm:/p", "mv:/a:/b", ...).
func (f *FaultFS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FaultFS) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *FaultFS) fault(m map[string]error, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[filepath.Clean(path)]
}

func (f *FaultFS) Open(name string) (*os.File, error) {
	return f.base.Open(name)
}

func (f *FaultFS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return f.base.OpenFile(name, flag, perm)
}

func (f *FaultFS) Stat(name string) (os.FileInfo, error) {
	return f.base.Stat(name)
}

func (f *FaultFS) Lstat(name string) (os.FileInfo, error) {
	if err := f.fault(f.lstatErrs, name); err != nil {
		return nil, &os.PathError{Op: "lstat", Path: name, Err: err}
	}
	return f.base.Lstat(name)
}

func (f *FaultFS) ReadDir(name string) ([]os.DirEntry, error) {
	if err := f.fault(f.readDirErrs, name); err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return f.base.ReadDir(name)
}

func (f *FaultFS) Remove(name string) error {
	f.record("rm:" + name)
	if err := f.fault(f.removeErrs, name); err != nil {
		return &os.PathError{Op: "remove", Path: name, Err: err}
	}
	return f.base.Remove(name)
}

func (f *FaultFS) Rename(oldpath, newpath string) error {
	f.record("mv:" + oldpath + ":" + newpath)
	f.mu.Lock()
	err := f.renameErr
	f.mu.Unlock()
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	return f.base.Rename(oldpath, newpath)
}

func (f *FaultFS) Mkdir(name string, perm os.FileMode) error {
	f.record("mkdir:" + name)
	return f.base.Mkdir(name, perm)
}

func (f *FaultFS) Chmod(name string, mode os.FileMode) error {
	return f.base.Chmod(name, mode)
}

func (f *FaultFS) Chtimes(name string, atime, mtime time.Time) error {
	return f.base.Chtimes(name, atime, mtime)
}
