package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var version int
	if err := db.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		t.Errorf("Failed to read schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}

	for _, indexName := range []string{"idx_timestamp", "idx_action", "idx_path", "idx_size"} {
		var name string
		if err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", indexName).Scan(&name); err != nil {
			t.Errorf("Index %s not found: %v", indexName, err)
		}
	}
}

// TestRecordAndRecent verifies insertion and retrieval of every field
func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)

	err := db.Record(Entry{
		Timestamp: time.Now(),
		Action:    ActionMoved,
		Path:      "/src/file.log",
		Target:    "/dst/file.log",
		Size:      1024,
		Owner:     "alice",
		Reason:    "manual",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := db.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.Path != "/src/file.log" || r.Target != "/dst/file.log" {
		t.Errorf("paths = %s -> %s", r.Path, r.Target)
	}
	if r.FileName != "file.log" {
		t.Errorf("FileName = %s, want file.log", r.FileName)
	}
	if r.Size != 1024 || r.Owner != "alice" || r.Action != string(ActionMoved) {
		t.Errorf("unexpected record %+v", r)
	}
	if r.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", r.ErrorMessage)
	}
}

// TestQueryMethods verifies the filtered queries
func TestQueryMethods(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	entries := []Entry{
		{Timestamp: now.Add(-3 * time.Hour), Action: ActionDeleted, Path: "/var/log/a.log", Size: 100},
		{Timestamp: now.Add(-2 * time.Hour), Action: ActionDeleted, Path: "/var/log/b.log", Size: 5000},
		{Timestamp: now.Add(-1 * time.Hour), Action: ActionFailed, Path: "/data/c.bin", Size: 9999, Error: "permission denied"},
		{Timestamp: now, Action: ActionSkipped, Path: "/etc/passwd", Size: 10},
	}
	for _, e := range entries {
		if err := db.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	t.Run("ByAction", func(t *testing.T) {
		recs, err := db.ByAction(ActionDeleted)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Errorf("got %d deleted, want 2", len(recs))
		}
	})

	t.Run("ByPath", func(t *testing.T) {
		recs, err := db.ByPath("/var/log/%")
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Errorf("got %d matches, want 2", len(recs))
		}
	})

	t.Run("Largest only counts deletions", func(t *testing.T) {
		recs, err := db.Largest(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0].Path != "/var/log/b.log" {
			t.Errorf("Largest = %+v, want b.log", recs)
		}
	})

	t.Run("ByDateRange", func(t *testing.T) {
		recs, err := db.ByDateRange(now.Add(-150*time.Minute), now.Add(-30*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 || recs[0].Path != "/data/c.bin" || recs[1].Path != "/var/log/b.log" {
			t.Errorf("ByDateRange = %+v, want c.bin then b.log", recs)
		}
	})

	t.Run("Recent ordering", func(t *testing.T) {
		recs, err := db.Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 4 || recs[0].Path != "/etc/passwd" {
			t.Errorf("Recent first = %+v, want /etc/passwd", recs)
		}
	})

	t.Run("Error message", func(t *testing.T) {
		recs, err := db.ByAction(ActionFailed)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0].ErrorMessage != "permission denied" {
			t.Errorf("failed entries = %+v", recs)
		}
	})

	t.Run("Summary", func(t *testing.T) {
		stats, err := db.Summary(1)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Deleted != 2 || stats.Failed != 1 || stats.Skipped != 1 {
			t.Errorf("stats = %+v", stats)
		}
		if stats.BytesDeleted != 5100 {
			t.Errorf("BytesDeleted = %d, want 5100", stats.BytesDeleted)
		}
		if stats.ByAction[string(ActionDeleted)] != 2 {
			t.Errorf("ByAction = %v", stats.ByAction)
		}
	})

	t.Run("RecentPage", func(t *testing.T) {
		recs, total, err := db.RecentPage(3, 3)
		if err != nil {
			t.Fatal(err)
		}
		if total != 4 || len(recs) != 1 {
			t.Errorf("page = %d records of %d, want 1 of 4", len(recs), total)
		}
	})
}

// TestInfo verifies database statistics gathering
func TestInfo(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		if err := db.Record(Entry{Action: ActionDeleted, Path: fmt.Sprintf("/f%d", i), Size: 1}); err != nil {
			t.Fatal(err)
		}
	}

	info, err := db.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.TotalRecords != 5 {
		t.Errorf("TotalRecords = %d, want 5", info.TotalRecords)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", info.SizeBytes)
	}
	if info.Oldest.IsZero() || info.Newest.IsZero() {
		t.Errorf("time range not parsed: %+v", info)
	}
}

// TestDeleteOldRecords verifies retention cleanup
func TestDeleteOldRecords(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if err := db.Record(Entry{Timestamp: now.AddDate(0, 0, -40), Action: ActionDeleted, Path: "/old"}); err != nil {
		t.Fatal(err)
	}
	if err := db.Record(Entry{Timestamp: now, Action: ActionDeleted, Path: "/new"}); err != nil {
		t.Fatal(err)
	}

	n, err := db.DeleteOldRecords(30)
	if err != nil {
		t.Fatalf("DeleteOldRecords: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}
	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum: %v", err)
	}
}

// TestConcurrentWriters verifies batch workers can record in parallel
func TestConcurrentWriters(t *testing.T) {
	db := openTestDB(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := db.Record(Entry{Action: ActionDeleted, Path: fmt.Sprintf("/w%d/f%d", w, i), Size: 1}); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write: %v", err)
	}

	info, err := db.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalRecords != 200 {
		t.Errorf("TotalRecords = %d, want 200", info.TotalRecords)
	}
}

// TestDatabaseErrorHandling verifies error conditions are handled properly
func TestDatabaseErrorHandling(t *testing.T) {
	if _, err := OpenDB("/dev/null/invalid/path/db.sqlite"); err == nil {
		t.Error("Expected error for invalid database path")
	}
}
