package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

// prepareInstance fills schedule-derived fields from the owning course
// and checks the date falls on one of the course's weekdays.
func (s *Service) prepareInstance(ctx context.Context, inst *schema.Instance) (*schema.Course, error) {
	c, err := s.db.GetCourse(ctx, inst.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: course %d does not exist", ErrValidation, inst.CourseID)
		}
		return nil, fmt.Errorf("failed to load owning course: %w", err)
	}

	ok, err := schema.DateMatchesDays(inst.Date, c.DaysOfWeek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: date %s does not fall on %s", ErrValidation, inst.Date, c.DaysOfWeek)
	}

	if inst.StartTime == "" {
		inst.StartTime = c.Time
	}
	if inst.EndTime == "" {
		inst.EndTime = schema.AddMinutes(inst.StartTime, c.Duration)
	}
	if inst.Capacity == 0 {
		inst.Capacity = c.Capacity
	}
	inst.ClampEnrolled()
	return c, nil
}

// AddInstance validates and stores a new class instance. The date must
// fall on one of the owning course's scheduled weekdays; start time, end
// time, and capacity are derived from the course when left blank.
func (s *Service) AddInstance(ctx context.Context, inst *schema.Instance) (int, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	c, err := s.prepareInstance(ctx, inst)
	if err != nil {
		return 0, err
	}
	if err := inst.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	inst.SyncStatus = schema.StatusPending
	id, err := s.db.InsertInstance(ctx, inst)
	if err != nil {
		return 0, fmt.Errorf("failed to insert instance: %w", err)
	}

	s.logActivity(ctx, schema.ActivityInstance,
		fmt.Sprintf("Added class on %s for course %q", inst.Date, c.Name), id)
	s.recordEvent(schema.ActivityInstance, id, "created", inst.Date)
	s.notify()
	return id, nil
}

// UpdateInstance validates and stores a changed instance.
func (s *Service) UpdateInstance(ctx context.Context, inst *schema.Instance) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.prepareInstance(ctx, inst); err != nil {
		return err
	}
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	inst.SyncStatus = schema.StatusPending
	if err := s.db.UpdateInstance(ctx, inst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: instance %d", ErrNotFound, inst.ID)
		}
		return fmt.Errorf("failed to update instance: %w", err)
	}

	s.logActivity(ctx, schema.ActivityInstance,
		fmt.Sprintf("Updated class on %s", inst.Date), inst.ID)
	s.recordEvent(schema.ActivityInstance, inst.ID, "updated", inst.Date)
	s.notify()
	return nil
}

// DeleteInstance starts the two-phase deletion of a class instance.
func (s *Service) DeleteInstance(ctx context.Context, id int) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	inst, err := s.db.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: instance %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to load instance: %w", err)
	}

	if err := s.db.SetInstanceSyncStatus(ctx, id, schema.StatusPendingDelete); err != nil {
		return fmt.Errorf("failed to mark instance for deletion: %w", err)
	}

	s.logActivity(ctx, schema.ActivitySync,
		fmt.Sprintf("Class on %s marked for deletion", inst.Date), id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.confirmInstanceDeletion(context.Background(), inst)
	}()
	return nil
}

// GetInstance returns one instance by id.
func (s *Service) GetInstance(ctx context.Context, id int) (*schema.Instance, error) {
	inst, err := s.db.GetInstance(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: instance %d", ErrNotFound, id)
	}
	return inst, err
}

// ListInstances returns every instance.
func (s *Service) ListInstances(ctx context.Context) ([]*schema.Instance, error) {
	return s.db.ListInstances(ctx)
}

// ListInstancesByCourse returns the instances owned by one course.
func (s *Service) ListInstancesByCourse(ctx context.Context, courseID int) ([]*schema.Instance, error) {
	return s.db.ListInstancesByCourse(ctx, courseID)
}

// UpdateEnrollment sets the enrolled head count on an instance. Negative
// values are rejected; values above the instance capacity are clamped to
// it.
func (s *Service) UpdateEnrollment(ctx context.Context, id, enrolled int) error {
	if enrolled < 0 {
		return fmt.Errorf("%w: enrolled cannot be negative", ErrValidation)
	}

	inst, err := s.db.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: instance %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to load instance: %w", err)
	}

	if enrolled > inst.Capacity {
		enrolled = inst.Capacity
	}
	if err := s.db.UpdateEnrollment(ctx, id, enrolled); err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	return nil
}
