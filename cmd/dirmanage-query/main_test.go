package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dirmanage/internal/activity"
	"dirmanage/internal/exitcodes"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.db")
	db, err := activity.OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	now := time.Now()
	entries := []activity.Entry{
		{Timestamp: now.Add(-3 * time.Hour), Action: activity.ActionDeleted, Path: "/data/big.iso", Size: 4 << 20, Owner: "alice"},
		{Timestamp: now.Add(-2 * time.Hour), Action: activity.ActionDeleted, Path: "/data/small.log", Size: 512, Owner: "bob"},
		{Timestamp: now.Add(-1 * time.Hour), Action: activity.ActionFailed, Path: "/data/locked.bin", Size: 10, Error: "permission denied"},
		{Timestamp: now, Action: activity.ActionMoved, Path: "/data/a.txt", Target: "/archive/a.txt", Size: 1},
	}
	for _, e := range entries {
		if err := db.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	return path
}

func runQuery(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestQueryModes(t *testing.T) {
	dbPath := seedDB(t)
	ago := func(d time.Duration) string { return time.Now().Add(-d).Format(time.RFC3339) }

	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{"recent", []string{"--recent", "1"}, []string{"/data/a.txt -> /archive/a.txt", "MOVED"}, []string{"big.iso"}},
		{"action", []string{"--action", "DELETED"}, []string{"big.iso", "small.log"}, []string{"locked.bin"}},
		{"path", []string{"--path", "%locked%"}, []string{"locked.bin"}, []string{"big.iso"}},
		{"largest", []string{"--largest", "1"}, []string{"big.iso", "4.0 MiB"}, []string{"small.log"}},
		{"stats", []string{"--stats", "--days", "7"}, []string{"Deleted:      2", "Failed:       1"}, nil},
		{"info", []string{"--info"}, []string{"Entries:  4"}, nil},
		{"page", []string{"--recent", "1", "--offset", "1"}, []string{"Entries 2-2 of 4", "locked.bin"}, []string{"a.txt"}},
		{"page past end", []string{"--recent", "5", "--offset", "10"}, []string{"No entries past offset 10 (4 total)"}, nil},
		{"since", []string{"--since", ago(150 * time.Minute)}, []string{"small.log", "locked.bin", "a.txt"}, []string{"big.iso"}},
		{"date range", []string{"--since", ago(150 * time.Minute), "--until", ago(90 * time.Minute)}, []string{"small.log"}, []string{"big.iso", "locked.bin", "a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stderr, code := runQuery(t, append([]string{"--db", dbPath}, tt.args...)...)
			if code != exitcodes.Success {
				t.Fatalf("exit code %d: %s", code, stderr)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(out, n) {
					t.Errorf("output should not contain %q:\n%s", n, out)
				}
			}
		})
	}
}

func TestQueryJSON(t *testing.T) {
	dbPath := seedDB(t)

	out, _, code := runQuery(t, "--db", dbPath, "--action", "DELETED", "--json")
	if code != exitcodes.Success {
		t.Fatalf("exit code %d", code)
	}
	var records []activity.HistoryRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestQueryPrune(t *testing.T) {
	dbPath := seedDB(t)

	out, _, code := runQuery(t, "--db", dbPath, "--prune", "30")
	if code != exitcodes.Success {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out, "Removed 0 entries") {
		t.Errorf("recent entries should survive pruning: %s", out)
	}
}

func TestQueryUsage(t *testing.T) {
	dbPath := seedDB(t)

	_, stderr, code := runQuery(t, "--db", dbPath)
	if code != exitcodes.InvalidConfig {
		t.Errorf("exit code = %d, want %d", code, exitcodes.InvalidConfig)
	}
	if !strings.Contains(stderr, "Examples:") {
		t.Errorf("usage should list examples: %s", stderr)
	}

	if _, _, code := runQuery(t, "--no-such-flag"); code != exitcodes.InvalidConfig {
		t.Errorf("unknown flag exit code = %d", code)
	}
	if _, _, code := runQuery(t, "--db", dbPath, "--recent", "1", "--offset", "-1"); code != exitcodes.InvalidConfig {
		t.Errorf("negative offset exit code = %d", code)
	}
	if _, _, code := runQuery(t, "--db", dbPath, "--since", "yesterday"); code != exitcodes.InvalidConfig {
		t.Errorf("bad --since exit code = %d", code)
	}
}

func TestParseRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name      string
		since     string
		until     string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{"open range ends now", "", "", time.Time{}, now, false},
		{"date only since", "2026-03-01", "", time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), now, false},
		{"date only until covers the day", "2026-03-01", "2026-03-02",
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local),
			time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local).Add(-time.Nanosecond), false},
		{"inverted", "2026-03-05", "2026-03-01", time.Time{}, time.Time{}, true},
		{"garbage", "last week", "", time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseRange(tt.since, tt.until, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("range = [%v, %v], want [%v, %v]", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
