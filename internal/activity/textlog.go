package activity

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"dirmanage/internal/fsops"
)

// TextTimeLayout is the timestamp format of text log lines.
const TextTimeLayout = "2006-01-02 15:04:05"

// TextLog appends one line per entry to a plain file:
//
//	2025-10-13 12:34:56,DELETED,/path/to/file,12345,owner
//
// Each append holds the guard so lines from concurrent workers never interleave.
type TextLog struct {
	path  string
	guard *fsops.Guard
}

// NewTextLog creates a TextLog writing to path. A nil guard gets a private one.
func NewTextLog(path string, guard *fsops.Guard) *TextLog {
	if guard == nil {
		guard = fsops.NewGuard()
	}
	return &TextLog{path: path, guard: guard}
}

// Path returns the log file location.
func (l *TextLog) Path() string {
	return l.path
}

// Record appends e to the log file, creating it if needed.
func (l *TextLog) Record(e Entry) error {
	line, err := FormatLine(e)
	if err != nil {
		return err
	}

	return l.guard.Do(func() error {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open activity log %s: %w", l.path, err)
		}
		if _, err := f.Write(line); err != nil {
			f.Close()
			return fmt.Errorf("append activity log %s: %w", l.path, err)
		}
		return f.Close()
	})
}

// FormatLine renders e as a single CSV line in local time. Fields are quoted
// only when they contain a comma, quote or newline.
func FormatLine(e Entry) ([]byte, error) {
	e = stamp(e)

	owner := e.Owner
	if owner == "" {
		owner = "unknown"
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{
		e.Timestamp.Local().Format(TextTimeLayout),
		string(e.Action),
		e.Path,
		strconv.FormatInt(e.Size, 10),
		owner,
	}); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
