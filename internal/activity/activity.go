// Package activity records what dirmanage did to the filesystem: an
// append-only text log in the classic "timestamp,ACTION,path,size,owner"
// form and a SQLite history that can be queried afterwards.
package activity

import (
	"errors"
	"time"
)

// Action names an activity entry. The values appear verbatim in the text log.
type Action string

const (
	ActionDeleted  Action = "DELETED"
	ActionSkipped  Action = "SKIPPED"
	ActionFailed   Action = "FAILED"
	ActionDryRun   Action = "DRY_RUN"
	ActionCopied   Action = "COPIED"
	ActionMoved    Action = "MOVED"
	ActionRenamed  Action = "RENAMED"
	ActionMkdir    Action = "MKDIR"
	ActionRmtree   Action = "RMTREE"
	ActionReported Action = "REPORTED"
)

// Entry is one activity event.
type Entry struct {
	Timestamp time.Time
	Action    Action
	Path      string
	// Target is the destination of copy, move and rename
	Target string
	Size   int64
	Owner  string
	Reason string
	Error  string
}

// Recorder persists activity entries.
type Recorder interface {
	Record(e Entry) error
}

// Multi fans an entry out to several recorders. Every recorder is tried;
// the returned error joins all failures.
type Multi []Recorder

func (m Multi) Record(e Entry) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(Entry) error { return nil }

func stamp(e Entry) Entry {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return e
}
