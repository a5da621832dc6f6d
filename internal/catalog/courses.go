package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

// AddCourse validates and stores a new course. The record starts in the
// pending state and the autosync scheduler is notified.
func (s *Service) AddCourse(ctx context.Context, c *schema.Course) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := c.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.SyncStatus = schema.StatusPending
	id, err := s.db.InsertCourse(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("failed to insert course: %w", err)
	}

	s.logActivity(ctx, schema.ActivityCourse,
		fmt.Sprintf("Created course %q on %s", c.Name, c.DaysOfWeek), id)
	s.recordEvent(schema.ActivityCourse, id, "created", c.Name)
	s.notify()
	return id, nil
}

// UpdateCourse validates and stores a changed course, then cascades the
// schedule-derived fields to every owned instance. Cascade failures on
// individual instances are logged and do not fail the update.
func (s *Service) UpdateCourse(ctx context.Context, c *schema.Course) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.SyncStatus = schema.StatusPending
	if err := s.db.UpdateCourse(ctx, c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: course %d", ErrNotFound, c.ID)
		}
		return fmt.Errorf("failed to update course: %w", err)
	}

	s.cascadeCourseUpdate(ctx, c)

	s.logActivity(ctx, schema.ActivityCourse,
		fmt.Sprintf("Updated course %q", c.Name), c.ID)
	s.recordEvent(schema.ActivityCourse, c.ID, "updated", c.Name)
	s.notify()
	return nil
}

// DeleteCourse starts the two-phase deletion of a course. Phase one marks
// the record pending-delete locally and returns; phase two confirms the
// deletion against both replicas in the background and only then removes
// the local record. Call Wait to block until confirmation finishes.
func (s *Service) DeleteCourse(ctx context.Context, id int) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c, err := s.db.GetCourse(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: course %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to load course: %w", err)
	}

	if err := s.db.SetCourseSyncStatus(ctx, id, schema.StatusPendingDelete); err != nil {
		return fmt.Errorf("failed to mark course for deletion: %w", err)
	}

	s.logActivity(ctx, schema.ActivitySync,
		fmt.Sprintf("Course %q marked for deletion", c.Name), id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.confirmCourseDeletion(context.Background(), c)
	}()
	return nil
}

// GetCourse returns one course by id.
func (s *Service) GetCourse(ctx context.Context, id int) (*schema.Course, error) {
	c, err := s.db.GetCourse(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: course %d", ErrNotFound, id)
	}
	return c, err
}

// ListCourses returns every course, including pending-delete records.
func (s *Service) ListCourses(ctx context.Context) ([]*schema.Course, error) {
	return s.db.ListCourses(ctx)
}

// SearchCourses matches the query against course name, type, and
// instructor.
func (s *Service) SearchCourses(ctx context.Context, query string) ([]*schema.Course, error) {
	return s.db.SearchCourses(ctx, query)
}

// ListCoursesByDay returns courses whose schedule includes the given
// weekday.
func (s *Service) ListCoursesByDay(ctx context.Context, day string) ([]*schema.Course, error) {
	return s.db.ListCoursesByDay(ctx, day)
}

// MarkAllSynced flips every pending course and instance to synced after a
// successful full upload. Pending-delete records are left untouched.
func (s *Service) MarkAllSynced(ctx context.Context) (int, error) {
	courses, err := s.db.MarkPendingCoursesSynced(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark courses synced: %w", err)
	}
	instances, err := s.db.MarkPendingInstancesSynced(ctx)
	if err != nil {
		return courses, fmt.Errorf("failed to mark instances synced: %w", err)
	}
	return courses + instances, nil
}
