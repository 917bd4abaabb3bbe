package fsops

import (
	"fmt"
	"path/filepath"
	"time"

	"dirmanage/internal/metrics"

	"go.uber.org/zap"
)

// RemovalSummary counts what RemoveTree deleted, including partial progress
// when it aborts.
type RemovalSummary struct {
	Root  string
	Files int
	Dirs  int
	Bytes int64
}

type removeFrame struct {
	path     string
	expanded bool
}

// RemoveTree deletes root and everything beneath it, children before parents.
//
// root must be an existing directory (not followed if it is a symlink),
// otherwise the error has KindNotADirectory. Each single remove/rmdir holds
// the Guard; the tree as a whole is not atomic. The first failure aborts the
// walk and leaves the tree partially removed. The error names the path that
// failed.
func (e *Engine) RemoveTree(root string) (*RemovalSummary, error) {
	start := time.Now()
	summary, err := e.removeTree(filepath.Clean(root))
	metrics.RecordDeletions(summary.Files, summary.Bytes)
	e.finish("rmtree", start, err,
		zap.String("path", root),
		zap.Int("files_removed", summary.Files),
		zap.Int("dirs_removed", summary.Dirs),
	)
	return summary, err
}

// CheckTreeRoot reports the error RemoveTree would return for a root that
// is missing or not a directory, without touching anything.
func (e *Engine) CheckTreeRoot(root string) error {
	info, err := e.fs.Lstat(root)
	if err != nil {
		return &OpError{Kind: KindNotADirectory, Op: "rmtree", Path: root, Err: err}
	}
	if !info.IsDir() {
		return &OpError{Kind: KindNotADirectory, Op: "rmtree", Path: root,
			Err: fmt.Errorf("mode %s", info.Mode())}
	}
	return nil
}

func (e *Engine) removeTree(root string) (*RemovalSummary, error) {
	summary := &RemovalSummary{Root: root}

	if err := e.CheckTreeRoot(root); err != nil {
		return summary, err
	}

	stack := []*removeFrame{{path: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.expanded {
			// Every child of top has been removed.
			if err := e.guard.Do(func() error { return e.fs.Remove(top.path) }); err != nil {
				return summary, ioError("rmdir", top.path, err)
			}
			summary.Dirs++
			stack = stack[:len(stack)-1]
			continue
		}

		entries, err := e.fs.ReadDir(top.path)
		if err != nil {
			return summary, &OpError{Kind: KindOpenFailure, Op: "readdir", Path: top.path, Err: err}
		}
		top.expanded = true

		for _, entry := range entries {
			child := filepath.Join(top.path, entry.Name())
			childInfo, err := e.fs.Lstat(child)
			if err != nil {
				return summary, ioError("lstat", child, err)
			}
			if childInfo.IsDir() {
				stack = append(stack, &removeFrame{path: child})
				continue
			}
			if err := e.guard.Do(func() error { return e.fs.Remove(child) }); err != nil {
				return summary, ioError("remove", child, err)
			}
			summary.Files++
			summary.Bytes += childInfo.Size()
		}
	}
	return summary, nil
}
