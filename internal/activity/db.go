package activity

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB manages the SQLite activity history
type DB struct {
	db *sql.DB
}

// HistoryRecord is one stored activity row
type HistoryRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Path         string    `json:"path"`
	Target       string    `json:"target,omitempty"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	Owner        string    `json:"owner,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// OpenDB opens (creating if needed) the history database and initializes schema
func OpenDB(dbPath string) (*DB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto parses DATETIME columns back into time.Time;
	// _busy_timeout lets concurrent batch workers wait for the writer lock
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Ping alone does not create the file
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	adb := &DB{db: db}
	if err = adb.initSchema(); err != nil {
		return nil, err
	}

	return adb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		target TEXT,
		file_name TEXT,
		size INTEGER NOT NULL,
		owner TEXT,
		reason TEXT,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON activity(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON activity(action);
	CREATE INDEX IF NOT EXISTS idx_path ON activity(path);
	CREATE INDEX IF NOT EXISTS idx_size ON activity(size);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Record inserts an activity entry
func (d *DB) Record(e Entry) error {
	e = stamp(e)

	_, err := d.db.Exec(`
	INSERT INTO activity (
		timestamp, action, path, target, file_name, size, owner, reason, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Timestamp,
		string(e.Action),
		e.Path,
		nullString(e.Target),
		filepath.Base(e.Path),
		e.Size,
		nullString(e.Owner),
		nullString(e.Reason),
		nullString(e.Error),
	)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", e.Action, e.Path, err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database
func (d *DB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// Info describes the database file itself
type Info struct {
	TotalRecords int64     `json:"total_records"`
	SizeBytes    int64     `json:"database_size_bytes"`
	Oldest       time.Time `json:"oldest_record,omitempty"`
	Newest       time.Time `json:"newest_record,omitempty"`
}

// Info returns record count, on-disk size and the covered time range
func (d *DB) Info() (*Info, error) {
	info := &Info{}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM activity").Scan(&info.TotalRecords); err != nil {
		return nil, err
	}

	var pageCount, pageSize int64
	if err := d.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	info.SizeBytes = pageCount * pageSize

	// MIN/MAX lose the column type, so they come back as text
	var oldest, newest sql.NullString
	if err := d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM activity").Scan(&oldest, &newest); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseSQLiteTime(oldest); ok {
		info.Oldest = t
	}
	if t, ok := parseSQLiteTime(newest); ok {
		info.Newest = t
	}

	return info, nil
}

// sqliteTimeLayouts are the forms go-sqlite3 uses when storing time.Time
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
