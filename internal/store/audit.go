package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

// InsertActivity appends one audit entry. Activity rows are immutable;
// there is deliberately no update or single-row delete.
func (db *DB) InsertActivity(ctx context.Context, a *schema.ActivityRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activity (id, type, description, timestamp, relatedId)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Description, a.Timestamp, a.RelatedID)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListActivity returns the most recent audit entries, newest first.
// limit <= 0 returns everything.
func (db *DB) ListActivity(ctx context.Context, limit int) ([]*schema.ActivityRecord, error) {
	query := `SELECT id, type, description, timestamp, relatedId
	          FROM activity ORDER BY timestamp DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var records []*schema.ActivityRecord
	for rows.Next() {
		var a schema.ActivityRecord
		var related sql.NullString
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.Timestamp, &related); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.RelatedID = related.String
		records = append(records, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}
	return records, nil
}

// InsertSyncHistory stores a new sync attempt record (normally with
// status "in_progress").
func (db *DB) InsertSyncHistory(ctx context.Context, h *schema.SyncHistoryRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_history (id, timestamp, status, type, "trigger", duration, retryCount, dataSize)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Timestamp, h.Status, h.Type, h.Trigger, h.Duration, h.RetryCount, h.DataSize)
	if err != nil {
		return fmt.Errorf("failed to insert sync history: %w", err)
	}
	return nil
}

// UpdateSyncHistory finalizes a sync attempt record with its outcome.
func (db *DB) UpdateSyncHistory(ctx context.Context, h *schema.SyncHistoryRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sync_history SET status = ?, duration = ?, retryCount = ?, dataSize = ?
		 WHERE id = ?`,
		h.Status, h.Duration, h.RetryCount, h.DataSize, h.ID)
	if err != nil {
		return fmt.Errorf("failed to update sync history %s: %w", h.ID, err)
	}
	return nil
}

// GetSyncHistory retrieves one sync attempt by id.
// Returns sql.ErrNoRows if not found.
func (db *DB) GetSyncHistory(ctx context.Context, id string) (*schema.SyncHistoryRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, timestamp, status, type, "trigger", duration, retryCount, dataSize
		 FROM sync_history WHERE id = ?`, id)
	return scanSyncHistory(row)
}

// ListSyncHistory returns the most recent sync attempts, newest first.
// limit <= 0 returns everything.
func (db *DB) ListSyncHistory(ctx context.Context, limit int) ([]*schema.SyncHistoryRecord, error) {
	query := `SELECT id, timestamp, status, type, "trigger", duration, retryCount, dataSize
	          FROM sync_history ORDER BY timestamp DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}
	defer rows.Close()

	var records []*schema.SyncHistoryRecord
	for rows.Next() {
		h, err := scanSyncHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync history: %w", err)
		}
		records = append(records, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync history: %w", err)
	}
	return records, nil
}

func scanSyncHistory(row rowScanner) (*schema.SyncHistoryRecord, error) {
	var h schema.SyncHistoryRecord
	var trigger sql.NullString
	err := row.Scan(&h.ID, &h.Timestamp, &h.Status, &h.Type, &trigger,
		&h.Duration, &h.RetryCount, &h.DataSize)
	if err != nil {
		return nil, err
	}
	h.Trigger = trigger.String
	return &h, nil
}
