package scan

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"dirmanage/internal/fsops"
	"dirmanage/internal/metrics"
)

// OverflowPolicy decides what Collect does once MaxRecords is reached.
type OverflowPolicy string

const (
	// OverflowTruncate keeps the first MaxRecords records and counts the rest
	OverflowTruncate OverflowPolicy = "truncate"
	// OverflowError stops the walk and returns ErrTooManyRecords
	OverflowError OverflowPolicy = "error"
)

// ErrTooManyRecords is returned by Collect under OverflowError.
var ErrTooManyRecords = errors.New("record limit exceeded")

// ParseOverflowPolicy validates a policy name; empty means truncate.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case "", OverflowTruncate:
		return OverflowTruncate, nil
	case OverflowError:
		return OverflowError, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q (want %q or %q)", s, OverflowTruncate, OverflowError)
}

// Options tune a Walker. The zero value walks the whole tree with no limit.
type Options struct {
	// MaxDepth limits how far below the root entries are reported.
	// 1 lists only the root's direct children; 0 means unlimited.
	MaxDepth int
	// MaxRecords caps Collect; 0 means unlimited.
	MaxRecords int
	Overflow   OverflowPolicy
}

// Walker enumerates regular files under a root.
type Walker struct {
	fs     fsops.FileSystem
	logger *zap.Logger
	opts   Options
	names  *nameCache
}

// NewWalker creates a Walker. A nil fs means the real filesystem.
func NewWalker(fs fsops.FileSystem, logger *zap.Logger, opts Options) *Walker {
	if fs == nil {
		fs = fsops.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowTruncate
	}
	return &Walker{
		fs:     fs,
		logger: logger,
		opts:   opts,
		names:  newNameCache(),
	}
}

type walkFrame struct {
	path  string
	depth int
}

// Walk returns a lazy, depth-first sequence of the regular files under root.
//
// If root cannot be read the sequence yields a single OpenFailure error and
// no records. Unreadable subdirectories and entries whose lstat fails are
// skipped. Symlinks are never followed, and devices, sockets and fifos are
// not reported. Sibling order is unspecified.
func (w *Walker) Walk(root string) iter.Seq2[Record, error] {
	root = filepath.Clean(root)

	return func(yield func(Record, error) bool) {
		stack := []walkFrame{{path: root, depth: 0}}

		for len(stack) > 0 {
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			entries, err := w.fs.ReadDir(frame.path)
			if err != nil {
				if frame.path == root {
					yield(Record{}, &fsops.OpError{Kind: fsops.KindOpenFailure, Op: "walk", Path: root, Err: err})
					return
				}
				w.logger.Debug("skipping unreadable directory", zap.String("path", frame.path), zap.Error(err))
				metrics.RecordWalkSkip("unreadable_dir")
				continue
			}

			childDepth := frame.depth + 1
			var subdirs []walkFrame

			for _, entry := range entries {
				path := filepath.Join(frame.path, entry.Name())

				info, err := w.fs.Lstat(path)
				if err != nil {
					w.logger.Debug("entry vanished during walk",
						zap.String("path", path),
						zap.Stringer("kind", fsops.KindStatRace),
						zap.Error(err))
					metrics.RecordWalkSkip("stat_race")
					continue
				}

				switch mode := info.Mode(); {
				case mode.IsDir():
					if w.opts.MaxDepth == 0 || childDepth < w.opts.MaxDepth {
						subdirs = append(subdirs, walkFrame{path: path, depth: childDepth})
					}
				case mode.IsRegular():
					if !yield(w.names.newRecord(path, info), nil) {
						return
					}
				}
			}

			// Reverse push keeps subdirectories in listing order when popped
			for i := len(subdirs) - 1; i >= 0; i-- {
				stack = append(stack, subdirs[i])
			}
		}
	}
}

// Snapshot is the materialized result of a walk.
type Snapshot struct {
	Root    string
	Records []Record
	// Truncated counts records dropped under OverflowTruncate
	Truncated int
	TakenAt   time.Time
}

// Collect walks root into a Snapshot, applying MaxRecords and the overflow
// policy. Under OverflowError the partial snapshot is returned together with
// an error wrapping ErrTooManyRecords.
func (w *Walker) Collect(root string) (*Snapshot, error) {
	return w.CollectFunc(root, nil)
}

// CollectFunc is Collect restricted to records for which keep returns true.
// A nil keep accepts every record. The cap applies to kept records only.
func (w *Walker) CollectFunc(root string, keep func(Record) bool) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{Root: filepath.Clean(root), TakenAt: start}

	for rec, err := range w.Walk(root) {
		if err != nil {
			return snap, err
		}
		if keep != nil && !keep(rec) {
			continue
		}
		if w.opts.MaxRecords > 0 && len(snap.Records) >= w.opts.MaxRecords {
			if w.opts.Overflow == OverflowError {
				metrics.RecordWalk(len(snap.Records), time.Since(start))
				return snap, fmt.Errorf("%w: more than %d records under %s", ErrTooManyRecords, w.opts.MaxRecords, snap.Root)
			}
			snap.Truncated++
			metrics.RecordWalkSkip("truncated")
			continue
		}
		snap.Records = append(snap.Records, rec)
	}

	if snap.Truncated > 0 {
		w.logger.Warn("record limit reached, results truncated",
			zap.String("root", snap.Root),
			zap.Int("limit", w.opts.MaxRecords),
			zap.Int("dropped", snap.Truncated))
	}
	metrics.RecordWalk(len(snap.Records), time.Since(start))
	return snap, nil
}
