package fsops

import (
	"errors"
	"fmt"
)

// Kind classifies a filesystem failure.
type Kind int

const (
	// KindOpenFailure: a root or intermediate directory could not be opened.
	KindOpenFailure Kind = iota + 1
	// KindStatRace: an entry vanished between listing and stat. Never surfaced by the walker.
	KindStatRace
	// KindIOFailure: a copy/move/rename/delete/create syscall failed.
	KindIOFailure
	// KindNotADirectory: a directory-only operation was given something else.
	KindNotADirectory
	// KindPartialMove: the fallback copy of a move succeeded but the source could not be removed.
	KindPartialMove
)

var (
	ErrOpenFailure   = errors.New("open failure")
	ErrStatRace      = errors.New("stat race")
	ErrIOFailure     = errors.New("io failure")
	ErrNotADirectory = errors.New("not a directory")
	ErrPartialMove   = errors.New("partial move: destination written, source not removed")
)

func (k Kind) String() string {
	switch k {
	case KindOpenFailure:
		return "open_failure"
	case KindStatRace:
		return "stat_race"
	case KindIOFailure:
		return "io_failure"
	case KindNotADirectory:
		return "not_a_directory"
	case KindPartialMove:
		return "partial_move"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindOpenFailure:
		return ErrOpenFailure
	case KindStatRace:
		return ErrStatRace
	case KindIOFailure:
		return ErrIOFailure
	case KindNotADirectory:
		return ErrNotADirectory
	case KindPartialMove:
		return ErrPartialMove
	default:
		return nil
	}
}

// OpError records a failed operation, the path it targeted and the cause.
// errors.Is matches both the Kind sentinel (ErrIOFailure, ...) and the
// underlying syscall error.
type OpError struct {
	Kind   Kind
	Op     string
	Path   string
	Target string // destination for copy/move/rename
	Err    error
}

func (e *OpError) Error() string {
	path := e.Path
	if e.Target != "" {
		path = e.Path + " -> " + e.Target
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, path, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind carried by err, or 0 when err is not an *OpError.
func KindOf(err error) Kind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return 0
}

// PathOf returns the path carried by err, or "" when err is not an *OpError.
func PathOf(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Path
	}
	return ""
}

func ioError(op, path string, err error) error {
	return &OpError{Kind: KindIOFailure, Op: op, Path: path, Err: err}
}
