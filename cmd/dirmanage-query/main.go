package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"dirmanage/internal/activity"
	"dirmanage/internal/exitcodes"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dirmanage-query", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dbPath := fs.String("db", "/var/lib/dirmanage/activity.db", "Path to activity database")
	recent := fs.Int("recent", 0, "Show N most recent entries")
	offset := fs.Int("offset", 0, "Skip the N newest entries (with --recent)")
	stats := fs.Bool("stats", false, "Show activity statistics")
	action := fs.String("action", "", "Filter by action (DELETED, FAILED, SKIPPED, DRY_RUN, MOVED, ...)")
	pathPattern := fs.String("path", "", "Filter by path pattern (SQL LIKE syntax)")
	largest := fs.Int("largest", 0, "Show N largest deletions")
	since := fs.String("since", "", "Show entries at or after this time (YYYY-MM-DD or RFC3339)")
	until := fs.String("until", "", "Show entries at or before this time (YYYY-MM-DD or RFC3339, default now)")
	days := fs.Int("days", 30, "Number of days for statistics")
	info := fs.Bool("info", false, "Show database size and time span")
	prune := fs.Int("prune", 0, "Delete entries older than N days, then vacuum")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	if err := fs.Parse(args); err != nil {
		return exitcodes.InvalidConfig
	}
	if *offset < 0 {
		fmt.Fprintln(stderr, "ERROR: --offset must not be negative")
		return exitcodes.InvalidConfig
	}
	start, end, err := parseRange(*since, *until, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitcodes.InvalidConfig
	}

	db, err := activity.OpenDB(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: Failed to open database %s: %v\n", *dbPath, err)
		return exitcodes.RuntimeError
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "ERROR: Failed to close database: %v\n", err)
		}
	}()

	q := &querier{db: db, out: stdout, json: *jsonOutput}

	switch {
	case *stats:
		err = q.showStats(*days)
	case *recent > 0 && *offset > 0:
		err = q.showPage(*recent, *offset)
	case *recent > 0:
		err = q.show(fmt.Sprintf("Most recent %d entries:", *recent), func() ([]activity.HistoryRecord, error) {
			return db.Recent(*recent)
		})
	case *action != "":
		err = q.show("Entries with action: "+*action, func() ([]activity.HistoryRecord, error) {
			return db.ByAction(activity.Action(*action))
		})
	case *pathPattern != "":
		err = q.show("Entries matching path pattern: "+*pathPattern, func() ([]activity.HistoryRecord, error) {
			return db.ByPath(*pathPattern)
		})
	case *since != "" || *until != "":
		title := fmt.Sprintf("Entries from %s to %s:", start.Format(time.DateTime), end.Format(time.DateTime))
		err = q.show(title, func() ([]activity.HistoryRecord, error) {
			return db.ByDateRange(start, end)
		})
	case *largest > 0:
		err = q.show(fmt.Sprintf("Largest %d deletions:", *largest), func() ([]activity.HistoryRecord, error) {
			return db.Largest(*largest)
		})
	case *info:
		err = q.showInfo()
	case *prune > 0:
		err = q.prune(*prune)
	default:
		fs.Usage()
		fmt.Fprintln(stderr, "\nExamples:")
		fmt.Fprintln(stderr, "  dirmanage-query --recent 10           # Show 10 most recent entries")
		fmt.Fprintln(stderr, "  dirmanage-query --stats --days 7      # Show statistics for a week")
		fmt.Fprintln(stderr, "  dirmanage-query --action DELETED      # Show only deletions")
		fmt.Fprintln(stderr, "  dirmanage-query --path '/srv/data/%'  # Show entries under /srv/data")
		fmt.Fprintln(stderr, "  dirmanage-query --recent 10 --offset 10  # Show the next 10 entries")
		fmt.Fprintln(stderr, "  dirmanage-query --since 2026-01-01    # Show entries since New Year")
		fmt.Fprintln(stderr, "  dirmanage-query --largest 10          # Show 10 largest deletions")
		fmt.Fprintln(stderr, "  dirmanage-query --prune 90            # Drop entries older than 90 days")
		return exitcodes.InvalidConfig
	}

	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitcodes.RuntimeError
	}
	return exitcodes.Success
}

type querier struct {
	db   *activity.DB
	out  io.Writer
	json bool
}

func (q *querier) writeJSON(v any) error {
	enc := json.NewEncoder(q.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (q *querier) show(title string, fetch func() ([]activity.HistoryRecord, error)) error {
	records, err := fetch()
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if q.json {
		return q.writeJSON(records)
	}
	fmt.Fprintf(q.out, "%s\n\n", title)
	return printRecords(q.out, records)
}

func (q *querier) showPage(limit, offset int) error {
	records, total, err := q.db.RecentPage(limit, offset)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if q.json {
		return q.writeJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(q.out, "No entries past offset %d (%d total).\n", offset, total)
		return nil
	}
	fmt.Fprintf(q.out, "Entries %d-%d of %d:\n\n", offset+1, offset+len(records), total)
	return printRecords(q.out, records)
}

// parseRange resolves --since/--until. A bare date for --until covers the
// whole day.
func parseRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	var start time.Time
	end := now
	if since != "" {
		t, _, err := parseTime(since)
		if err != nil {
			return start, end, fmt.Errorf("invalid --since: %w", err)
		}
		start = t
	}
	if until != "" {
		t, dateOnly, err := parseTime(until)
		if err != nil {
			return start, end, fmt.Errorf("invalid --until: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = t
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--until %s is before --since %s", until, since)
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t.In(time.Local), false, nil
}

func (q *querier) showStats(days int) error {
	stats, err := q.db.Summary(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}
	if q.json {
		return q.writeJSON(stats)
	}

	fmt.Fprintf(q.out, "Activity Statistics (Last %d days)\n", days)
	fmt.Fprintf(q.out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(q.out, "Deleted:      %d\n", stats.Deleted)
	fmt.Fprintf(q.out, "Skipped:      %d\n", stats.Skipped)
	fmt.Fprintf(q.out, "Failed:       %d\n", stats.Failed)
	fmt.Fprintf(q.out, "Space Freed:  %s\n", humanize.IBytes(uint64(stats.BytesDeleted)))

	if len(stats.ByAction) > 0 {
		fmt.Fprintln(q.out, "\nBy Action (all time):")
		for action, count := range stats.ByAction {
			fmt.Fprintf(q.out, "  %-15s %d\n", action, count)
		}
	}
	return nil
}

func (q *querier) showInfo() error {
	info, err := q.db.Info()
	if err != nil {
		return fmt.Errorf("database info: %w", err)
	}
	if q.json {
		return q.writeJSON(info)
	}
	fmt.Fprintf(q.out, "Entries:  %d\n", info.TotalRecords)
	fmt.Fprintf(q.out, "Size:     %s\n", humanize.IBytes(uint64(info.SizeBytes)))
	if info.TotalRecords > 0 {
		fmt.Fprintf(q.out, "Oldest:   %s\n", info.Oldest.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(q.out, "Newest:   %s\n", info.Newest.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (q *querier) prune(days int) error {
	n, err := q.db.DeleteOldRecords(days)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if err := q.db.Vacuum(); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	fmt.Fprintf(q.out, "Removed %d entries older than %d days\n", n, days)
	return nil
}

func printRecords(w io.Writer, records []activity.HistoryRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTimestamp\tAction\tSize\tOwner\tPath")
	fmt.Fprintln(tw, "--\t---------\t------\t----\t-----\t----")

	for _, r := range records {
		path := r.Path
		if r.Target != "" {
			path += " -> " + r.Target
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, humanize.IBytes(uint64(r.Size)), r.Owner, path)
	}
	return tw.Flush()
}
