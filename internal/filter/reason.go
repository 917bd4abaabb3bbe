package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dirmanage/internal/scan"
)

// Reason captures why a file was selected by the SRU filter.
// A nil part means that condition was not constrained (size 0, age 0, owner all).
type Reason struct {
	Size  *SizeReason
	Age   *AgeReason
	Owner *OwnerReason

	EvaluatedAt time.Time
}

// SizeReason indicates the file exceeded the size threshold.
type SizeReason struct {
	ConfiguredBytes int64
	ActualBytes     int64
}

// AgeReason indicates the file exceeded the age threshold.
type AgeReason struct {
	ConfiguredDays int
	ActualDays     float64
}

// OwnerReason indicates the file matched a specific owner.
type OwnerReason struct {
	Owner string
}

// Explain builds the Reason for a record that matched c at now.
func Explain(rec scan.Record, c Criteria, now time.Time) Reason {
	r := Reason{EvaluatedAt: now}
	if c.MinSizeBytes > 0 {
		r.Size = &SizeReason{ConfiguredBytes: c.MinSizeBytes, ActualBytes: rec.Size}
	}
	if c.MinAgeDays > 0 {
		r.Age = &AgeReason{ConfiguredDays: c.MinAgeDays, ActualDays: AgeDays(rec, now)}
	}
	if c.Owner != AllOwners {
		r.Owner = &OwnerReason{Owner: rec.Owner}
	}
	return r
}

// HasReason returns true if any threshold constrained the selection.
func (r Reason) HasReason() bool {
	return r.Size != nil || r.Age != nil || r.Owner != nil
}

// ToLogString formats the reason for structured logging.
// Example: "size: 500B (min=100B) + age: 10.0d (min=5d)"
func (r Reason) ToLogString() string {
	if !r.HasReason() {
		return "unconstrained"
	}

	var parts []string
	if r.Size != nil {
		parts = append(parts, fmt.Sprintf("size: %dB (min=%dB)", r.Size.ActualBytes, r.Size.ConfiguredBytes))
	}
	if r.Age != nil {
		parts = append(parts, fmt.Sprintf("age: %.1fd (min=%dd)", r.Age.ActualDays, r.Age.ConfiguredDays))
	}
	if r.Owner != nil {
		parts = append(parts, "owner: "+r.Owner.Owner)
	}
	return strings.Join(parts, " + ")
}

// ToHumanReadable formats the reason for terminal output.
// Example: "Larger than 100 B, older than 5 days"
func (r Reason) ToHumanReadable() string {
	if !r.HasReason() {
		return "Matches every file"
	}

	var parts []string
	if r.Size != nil {
		parts = append(parts, "Larger than "+humanize.Bytes(uint64(r.Size.ConfiguredBytes)))
	}
	if r.Age != nil {
		parts = append(parts, fmt.Sprintf("older than %d days", r.Age.ConfiguredDays))
	}
	if r.Owner != nil {
		parts = append(parts, "owned by "+r.Owner.Owner)
	}
	if len(parts) > 0 {
		parts[0] = strings.ToUpper(parts[0][:1]) + parts[0][1:]
	}
	return strings.Join(parts, ", ")
}
