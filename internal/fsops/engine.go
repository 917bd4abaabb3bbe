package fsops

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"dirmanage/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Engine performs single-target file operations.
// Every mutating syscall runs under the Engine's Guard.
type Engine struct {
	fs     FileSystem
	guard  *Guard
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFileSystem replaces the real filesystem (tests use FaultFS).
func WithFileSystem(fsys FileSystem) Option {
	return func(e *Engine) {
		if fsys != nil {
			e.fs = fsys
		}
	}
}

// WithLogger sets the logger used for operation results.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine that serializes mutations through guard.
// A nil guard gets a private one.
func NewEngine(guard *Guard, opts ...Option) *Engine {
	if guard == nil {
		guard = NewGuard()
	}
	e := &Engine{
		fs:     OSFileSystem{},
		guard:  guard,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Guard returns the guard shared by all mutations of this engine.
func (e *Engine) Guard() *Guard {
	return e.guard
}

// FileSystem returns the filesystem the engine operates on.
func (e *Engine) FileSystem() FileSystem {
	return e.fs
}

// Copy copies src to dst, preserving permission bits and timestamps.
// Ownership is not preserved.
func (e *Engine) Copy(src, dst string) error {
	start := time.Now()
	err := e.copyFile(src, dst)
	e.finish("copy", start, err, zap.String("src", src), zap.String("dst", dst))
	return err
}

// Move renames src to dst, falling back to copy+remove when the rename
// fails (typically EXDEV across filesystems). If the copy succeeds but src
// cannot be removed, the returned error has KindPartialMove and both files
// remain on disk; the caller owns the cleanup.
func (e *Engine) Move(src, dst string) error {
	start := time.Now()
	err := e.move(src, dst)
	e.finish("move", start, err, zap.String("src", src), zap.String("dst", dst))
	return err
}

func (e *Engine) move(src, dst string) error {
	renameErr := e.guard.Do(func() error { return e.fs.Rename(src, dst) })
	if renameErr == nil {
		return nil
	}

	e.logger.Debug("rename failed, falling back to copy",
		zap.String("src", src),
		zap.String("dst", dst),
		zap.Bool("cross_device", errors.Is(renameErr, unix.EXDEV)),
		zap.Error(renameErr),
	)

	if err := e.copyFile(src, dst); err != nil {
		return err
	}

	if err := e.guard.Do(func() error { return e.fs.Remove(src) }); err != nil {
		return &OpError{Kind: KindPartialMove, Op: "move", Path: src, Target: dst, Err: err}
	}
	return nil
}

// Rename renames oldpath to newpath. On POSIX an existing file at newpath
// is replaced; a missing oldpath fails.
func (e *Engine) Rename(oldpath, newpath string) error {
	start := time.Now()
	err := e.guard.Do(func() error { return e.fs.Rename(oldpath, newpath) })
	if err != nil {
		err = &OpError{Kind: KindIOFailure, Op: "rename", Path: oldpath, Target: newpath, Err: err}
	}
	e.finish("rename", start, err, zap.String("old", oldpath), zap.String("new", newpath))
	return err
}

// DeleteOne removes a single file (or empty directory).
func (e *Engine) DeleteOne(path string) error {
	start := time.Now()
	err := e.guard.Do(func() error { return e.fs.Remove(path) })
	if err != nil {
		err = ioError("remove", path, err)
	}
	e.finish("delete", start, err, zap.String("path", path))
	return err
}

// CreateDirectory creates path with mode. An existing directory is success.
// Parents are not created.
func (e *Engine) CreateDirectory(path string, mode os.FileMode) error {
	start := time.Now()
	err := e.guard.Do(func() error { return e.fs.Mkdir(path, mode) })
	if errors.Is(err, fs.ErrExist) {
		if info, statErr := e.fs.Stat(path); statErr == nil && info.IsDir() {
			err = nil
		}
	}
	if err != nil {
		err = ioError("mkdir", path, err)
	}
	e.finish("mkdir", start, err, zap.String("path", path))
	return err
}

func (e *Engine) finish(op string, start time.Time, err error, fields ...zap.Field) {
	elapsed := time.Since(start)
	metrics.RecordOperation(op, err, elapsed)
	if err != nil {
		e.logger.Error("operation failed", append(fields,
			zap.String("op", op),
			zap.Stringer("kind", KindOf(err)),
			zap.Error(err),
		)...)
		return
	}
	e.logger.Info("operation complete", append(fields,
		zap.String("op", op),
		zap.Duration("elapsed", elapsed),
	)...)
}
