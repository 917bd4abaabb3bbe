package scan

import (
	"fmt"
	"sort"
	"strings"
)

// SortKey orders listings.
type SortKey string

const (
	SortByName SortKey = "name"
	SortBySize SortKey = "size"
	SortByDate SortKey = "date"
)

// ParseSortKey accepts name, size or date (case-insensitive); empty means name.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(s)) {
	case "", SortByName:
		return SortByName, nil
	case SortBySize:
		return SortBySize, nil
	case SortByDate:
		return SortByDate, nil
	}
	return "", fmt.Errorf("unknown sort key %q (want name, size or date)", s)
}

// SortRecords sorts in place, ascending by name, size or modification time.
// Ties fall back to path so the order is deterministic.
func SortRecords(records []Record, key SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch key {
		case SortBySize:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case SortByDate:
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.Before(b.ModTime)
			}
		default:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		}
		return a.Path < b.Path
	})
}

// TotalSize sums record sizes.
func TotalSize(records []Record) int64 {
	var total int64
	for _, r := range records {
		total += r.Size
	}
	return total
}
