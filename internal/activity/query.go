package activity

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, timestamp, action, path, target, file_name, size, owner, reason, error_message
	FROM activity
`

// Recent returns the N most recent entries
func (d *DB) Recent(limit int) ([]HistoryRecord, error) {
	return d.query(selectColumns+`ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// RecentPage returns one page of entries, newest first, with the total count
func (d *DB) RecentPage(limit, offset int) ([]HistoryRecord, int, error) {
	var total int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM activity").Scan(&total); err != nil {
		return nil, 0, err
	}
	records, err := d.query(selectColumns+`ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	return records, total, err
}

// ByAction returns entries with the given action
func (d *DB) ByAction(action Action) ([]HistoryRecord, error) {
	return d.query(selectColumns+`WHERE action = ? ORDER BY timestamp DESC, id DESC`, string(action))
}

// ByPath returns entries whose path matches a LIKE pattern
func (d *DB) ByPath(pattern string) ([]HistoryRecord, error) {
	return d.query(selectColumns+`WHERE path LIKE ? ORDER BY timestamp DESC, id DESC`, pattern)
}

// ByDateRange returns entries within [start, end]
func (d *DB) ByDateRange(start, end time.Time) ([]HistoryRecord, error) {
	return d.query(selectColumns+`WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC, id DESC`, start, end)
}

// Largest returns the N largest deleted files
func (d *DB) Largest(limit int) ([]HistoryRecord, error) {
	return d.query(selectColumns+`WHERE action = ? ORDER BY size DESC LIMIT ?`, string(ActionDeleted), limit)
}

// BytesDeleted returns the total size of deleted files in a time range
func (d *DB) BytesDeleted(start, end time.Time) (int64, error) {
	var total int64
	err := d.db.QueryRow(`
	SELECT COALESCE(SUM(size), 0)
	FROM activity
	WHERE action = ? AND timestamp BETWEEN ? AND ?
	`, string(ActionDeleted), start, end).Scan(&total)
	return total, err
}

// CountByAction returns entry counts grouped by action
func (d *DB) CountByAction() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT action, COUNT(*) FROM activity GROUP BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

// Stats holds aggregated statistics for a period
type Stats struct {
	Deleted      int            `json:"deleted"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	BytesDeleted int64          `json:"bytes_deleted"`
	ByAction     map[string]int `json:"by_action"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      time.Time      `json:"end_date"`
}

// Summary returns statistics for the last N days
func (d *DB) Summary(days int) (*Stats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &Stats{StartDate: since, EndDate: now}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = ? THEN 1 END),
			COUNT(CASE WHEN action = ? THEN 1 END),
			COUNT(CASE WHEN action = ? THEN 1 END)
		FROM activity
		WHERE timestamp >= ?
	`, string(ActionDeleted), string(ActionSkipped), string(ActionFailed), since).
		Scan(&stats.Deleted, &stats.Skipped, &stats.Failed)
	if err != nil {
		return nil, err
	}

	if stats.BytesDeleted, err = d.BytesDeleted(since, now); err != nil {
		return nil, err
	}
	if stats.ByAction, err = d.CountByAction(); err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteOldRecords removes entries older than the given number of days
func (d *DB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`DELETE FROM activity WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *DB) query(query string, args ...interface{}) ([]HistoryRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var target, fileName, owner, reason, errMsg sql.NullString

		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.Path, &target, &fileName,
			&r.Size, &owner, &reason, &errMsg,
		); err != nil {
			return nil, err
		}

		r.Target = target.String
		r.FileName = fileName.String
		r.Owner = owner.String
		r.Reason = reason.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}
	return records, rows.Err()
}
