package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

const courseColumns = `id, name, daysOfWeek, time, capacity, duration, price,
	type, description, roomLocation, instructor, difficulty, syncStatus`

// InsertCourse stores a new course and returns the assigned id.
// The course is validated first and always enters the store as pending.
func (db *DB) InsertCourse(ctx context.Context, c *schema.Course) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("invalid course: %w", err)
	}

	query := `
	INSERT INTO courses (
		name, daysOfWeek, time, capacity, duration, price,
		type, description, roomLocation, instructor, difficulty, syncStatus
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		c.Name, c.DaysOfWeek, c.Time, c.Capacity, c.Duration, c.Price,
		c.Type, c.Description, c.RoomLocation, c.Instructor, c.Difficulty,
		int(c.SyncStatus),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert course: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read course id: %w", err)
	}

	c.ID = int(id)
	return c.ID, nil
}

// UpdateCourse rewrites an existing course by id.
func (db *DB) UpdateCourse(ctx context.Context, c *schema.Course) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid course: %w", err)
	}

	query := `
	UPDATE courses SET
		name = ?, daysOfWeek = ?, time = ?, capacity = ?, duration = ?,
		price = ?, type = ?, description = ?, roomLocation = ?,
		instructor = ?, difficulty = ?, syncStatus = ?
	WHERE id = ?
	`

	res, err := db.conn.ExecContext(ctx, query,
		c.Name, c.DaysOfWeek, c.Time, c.Capacity, c.Duration, c.Price,
		c.Type, c.Description, c.RoomLocation, c.Instructor, c.Difficulty,
		int(c.SyncStatus), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update course %d: %w", c.ID, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCourse physically removes a course. Owned instances are removed
// by the foreign-key cascade. Idempotent.
func (db *DB) DeleteCourse(ctx context.Context, id int) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete course %d: %w", id, err)
	}
	return nil
}

// GetCourse retrieves a single course by id.
// Returns sql.ErrNoRows if the course is not found.
func (db *DB) GetCourse(ctx context.Context, id int) (*schema.Course, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	return scanCourse(row)
}

// ListCourses returns every course, including records that are pending
// deletion.
func (db *DB) ListCourses(ctx context.Context) ([]*schema.Course, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	return scanCourses(rows)
}

// SearchCourses returns courses whose name, type or instructor matches the
// query substring.
func (db *DB) SearchCourses(ctx context.Context, query string) ([]*schema.Course, error) {
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses
		 WHERE name LIKE ? OR type LIKE ? OR instructor LIKE ?
		 ORDER BY id ASC`, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer rows.Close()

	return scanCourses(rows)
}

// ListCoursesByDay returns courses scheduled on the given weekday name.
func (db *DB) ListCoursesByDay(ctx context.Context, day string) ([]*schema.Course, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE daysOfWeek LIKE ? ORDER BY id ASC`,
		"%"+day+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses by day: %w", err)
	}
	defer rows.Close()

	return scanCourses(rows)
}

// ListCoursesPendingSync returns courses whose last write has not been
// confirmed at both replicas.
func (db *DB) ListCoursesPendingSync(ctx context.Context) ([]*schema.Course, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE syncStatus = ? ORDER BY id ASC`,
		int(schema.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending courses: %w", err)
	}
	defer rows.Close()

	return scanCourses(rows)
}

// ListCoursesPendingDelete returns courses awaiting replica deletion
// confirmation.
func (db *DB) ListCoursesPendingDelete(ctx context.Context) ([]*schema.Course, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE syncStatus = ? ORDER BY id ASC`,
		int(schema.StatusPendingDelete))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending-delete courses: %w", err)
	}
	defer rows.Close()

	return scanCourses(rows)
}

// SetCourseSyncStatus updates only the sync status column of one course.
func (db *DB) SetCourseSyncStatus(ctx context.Context, id int, status schema.SyncStatus) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE courses SET syncStatus = ? WHERE id = ?`, int(status), id)
	if err != nil {
		return fmt.Errorf("failed to set sync status for course %d: %w", id, err)
	}
	return nil
}

// MarkPendingCoursesSynced flips every pending course to synced and
// returns the number of rows changed.
func (db *DB) MarkPendingCoursesSynced(ctx context.Context) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE courses SET syncStatus = ? WHERE syncStatus = ?`,
		int(schema.StatusSynced), int(schema.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to mark courses synced: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CourseCount returns the total number of courses in the store.
func (db *DB) CourseCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*schema.Course, error) {
	var c schema.Course
	var typ, desc, room, instructor, difficulty sql.NullString
	var status int

	err := row.Scan(
		&c.ID, &c.Name, &c.DaysOfWeek, &c.Time, &c.Capacity, &c.Duration,
		&c.Price, &typ, &desc, &room, &instructor, &difficulty, &status,
	)
	if err != nil {
		return nil, err
	}

	c.Type = typ.String
	c.Description = desc.String
	c.RoomLocation = room.String
	c.Instructor = instructor.String
	c.Difficulty = difficulty.String
	c.SyncStatus = schema.SyncStatus(status)

	return &c, nil
}

func scanCourses(rows *sql.Rows) ([]*schema.Course, error) {
	var courses []*schema.Course

	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}

	return courses, nil
}
