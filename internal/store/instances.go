package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

const instanceColumns = `id, courseId, date, teacher, comments, syncStatus,
	startTime, endTime, enrolled, capacity`

// InsertInstance stores a new instance and returns the assigned id.
func (db *DB) InsertInstance(ctx context.Context, inst *schema.Instance) (int, error) {
	if err := inst.Validate(); err != nil {
		return 0, fmt.Errorf("invalid instance: %w", err)
	}

	query := `
	INSERT INTO instances (
		courseId, date, teacher, comments, syncStatus,
		startTime, endTime, enrolled, capacity
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		inst.CourseID, inst.Date, inst.Teacher, inst.Comments,
		int(inst.SyncStatus), inst.StartTime, inst.EndTime,
		inst.Enrolled, inst.Capacity,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert instance: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read instance id: %w", err)
	}

	inst.ID = int(id)
	return inst.ID, nil
}

// UpdateInstance rewrites an existing instance by id.
func (db *DB) UpdateInstance(ctx context.Context, inst *schema.Instance) error {
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("invalid instance: %w", err)
	}

	query := `
	UPDATE instances SET
		courseId = ?, date = ?, teacher = ?, comments = ?, syncStatus = ?,
		startTime = ?, endTime = ?, enrolled = ?, capacity = ?
	WHERE id = ?
	`

	res, err := db.conn.ExecContext(ctx, query,
		inst.CourseID, inst.Date, inst.Teacher, inst.Comments,
		int(inst.SyncStatus), inst.StartTime, inst.EndTime,
		inst.Enrolled, inst.Capacity, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update instance %d: %w", inst.ID, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteInstance physically removes an instance. Idempotent.
func (db *DB) DeleteInstance(ctx context.Context, id int) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete instance %d: %w", id, err)
	}
	return nil
}

// GetInstance retrieves a single instance by id.
// Returns sql.ErrNoRows if the instance is not found.
func (db *DB) GetInstance(ctx context.Context, id int) (*schema.Instance, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	return scanInstance(row)
}

// ListInstances returns every instance.
func (db *DB) ListInstances(ctx context.Context) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListInstancesByCourse returns every instance owned by a course.
func (db *DB) ListInstancesByCourse(ctx context.Context, courseID int) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE courseId = ? ORDER BY date ASC, id ASC`,
		courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances for course %d: %w", courseID, err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListInstancesByDate returns instances on an exact calendar date.
func (db *DB) ListInstancesByDate(ctx context.Context, date string) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE date = ? ORDER BY id ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances by date: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListInstancesByDateRange returns instances between two dates inclusive.
func (db *DB) ListInstancesByDateRange(ctx context.Context, from, to string) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances
		 WHERE date >= ? AND date <= ? ORDER BY date ASC, id ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances by range: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListInstancesByTeacher returns instances taught by a matching teacher.
func (db *DB) ListInstancesByTeacher(ctx context.Context, teacher string) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE teacher LIKE ? ORDER BY date ASC, id ASC`,
		"%"+teacher+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list instances by teacher: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListInstancesPendingSync returns instances whose last write has not been
// confirmed at both replicas.
func (db *DB) ListInstancesPendingSync(ctx context.Context) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE syncStatus = ? ORDER BY id ASC`,
		int(schema.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// ListInstancesPendingDelete returns instances awaiting replica deletion
// confirmation.
func (db *DB) ListInstancesPendingDelete(ctx context.Context) ([]*schema.Instance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE syncStatus = ? ORDER BY id ASC`,
		int(schema.StatusPendingDelete))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending-delete instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// SetInstanceSyncStatus updates only the sync status column of one
// instance.
func (db *DB) SetInstanceSyncStatus(ctx context.Context, id int, status schema.SyncStatus) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE instances SET syncStatus = ? WHERE id = ?`, int(status), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status for instance %d: %w", id, err)
	}
	return nil
}

// MarkPendingInstancesSynced flips every pending instance to synced and
// returns the number of rows changed.
func (db *DB) MarkPendingInstancesSynced(ctx context.Context) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE instances SET syncStatus = ? WHERE syncStatus = ?`,
		int(schema.StatusSynced), int(schema.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to mark instances synced: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpdateEnrollment sets the enrolled count for an instance.
func (db *DB) UpdateEnrollment(ctx context.Context, id, enrolled int) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE instances SET enrolled = ? WHERE id = ?`, enrolled, id)
	if err != nil {
		return fmt.Errorf("failed to update enrollment for instance %d: %w", id, err)
	}
	return nil
}

// InstanceCount returns the total number of instances in the store.
func (db *DB) InstanceCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM instances").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}
	return count, nil
}

func scanInstance(row rowScanner) (*schema.Instance, error) {
	var inst schema.Instance
	var comments, startTime, endTime sql.NullString
	var status int

	err := row.Scan(
		&inst.ID, &inst.CourseID, &inst.Date, &inst.Teacher, &comments,
		&status, &startTime, &endTime, &inst.Enrolled, &inst.Capacity,
	)
	if err != nil {
		return nil, err
	}

	inst.Comments = comments.String
	inst.StartTime = startTime.String
	inst.EndTime = endTime.String
	inst.SyncStatus = schema.SyncStatus(status)

	return &inst, nil
}

func scanInstances(rows *sql.Rows) ([]*schema.Instance, error) {
	var instances []*schema.Instance

	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}
