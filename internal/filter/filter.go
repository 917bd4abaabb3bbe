// Package filter implements the SRU (size, recency, user) file selection
// predicates. Every predicate is pure: the same record, criteria and clock
// always give the same answer.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dirmanage/internal/scan"
)

// AllOwners is the owner value that matches every file.
const AllOwners = "all"

// Day is the unit of MinAgeDays.
const Day = 24 * time.Hour

var (
	ErrNegativeSize = errors.New("min_size_bytes must be >= 0")
	ErrNegativeAge  = errors.New("min_age_days must be >= 0")
	ErrEmptyOwner   = errors.New("owner must be a user name or \"all\"")
)

// Criteria selects files strictly larger than MinSizeBytes, strictly older
// than MinAgeDays and owned by Owner. All three must hold.
type Criteria struct {
	MinSizeBytes int64  `yaml:"min_size_bytes"`
	MinAgeDays   int    `yaml:"min_age_days"`
	Owner        string `yaml:"owner"`
}

// Validate rejects criteria that can never be satisfied as intended.
func (c Criteria) Validate() error {
	if c.MinSizeBytes < 0 {
		return fmt.Errorf("%w (got %d)", ErrNegativeSize, c.MinSizeBytes)
	}
	if c.MinAgeDays < 0 {
		return fmt.Errorf("%w (got %d)", ErrNegativeAge, c.MinAgeDays)
	}
	if strings.TrimSpace(c.Owner) == "" {
		return ErrEmptyOwner
	}
	return nil
}

func (c Criteria) String() string {
	return fmt.Sprintf("size>%dB age>%dd owner=%s", c.MinSizeBytes, c.MinAgeDays, c.Owner)
}

// Predicate reports whether a record is selected at the given instant.
type Predicate func(rec scan.Record, now time.Time) bool

// SizeAbove matches records strictly larger than min bytes.
func SizeAbove(min int64) Predicate {
	return func(rec scan.Record, _ time.Time) bool {
		return rec.Size > min
	}
}

// OlderThan matches records whose age in (fractional) days is strictly
// greater than days.
func OlderThan(days int) Predicate {
	return func(rec scan.Record, now time.Time) bool {
		return AgeDays(rec, now) > float64(days)
	}
}

// OwnedBy matches the exact, case-sensitive owner name, or anything when
// owner is AllOwners.
func OwnedBy(owner string) Predicate {
	if owner == AllOwners {
		return func(scan.Record, time.Time) bool { return true }
	}
	return func(rec scan.Record, _ time.Time) bool {
		return rec.Owner == owner
	}
}

// NameContains matches records whose base name contains substr (case-sensitive).
func NameContains(substr string) Predicate {
	return func(rec scan.Record, _ time.Time) bool {
		return strings.Contains(rec.Name, substr)
	}
}

// All is the conjunction of preds. With no predicates it matches everything.
func All(preds ...Predicate) Predicate {
	return func(rec scan.Record, now time.Time) bool {
		for _, p := range preds {
			if !p(rec, now) {
				return false
			}
		}
		return true
	}
}

// Predicate returns the conjunction of the three SRU conditions.
func (c Criteria) Predicate() Predicate {
	return All(SizeAbove(c.MinSizeBytes), OlderThan(c.MinAgeDays), OwnedBy(c.Owner))
}

// AgeDays is the record's age in fractional days at now.
func AgeDays(rec scan.Record, now time.Time) float64 {
	return float64(rec.Age(now)) / float64(Day)
}

// Matches evaluates c against rec using the current wall clock.
func Matches(rec scan.Record, c Criteria) bool {
	return MatchesAt(rec, c, time.Now())
}

// MatchesAt evaluates c against rec at a fixed instant.
func MatchesAt(rec scan.Record, c Criteria, now time.Time) bool {
	return c.Predicate()(rec, now)
}

// Select returns the records matching pred at now, preserving order.
func Select(records []scan.Record, pred Predicate, now time.Time) []scan.Record {
	var out []scan.Record
	for _, rec := range records {
		if pred(rec, now) {
			out = append(out, rec)
		}
	}
	return out
}
