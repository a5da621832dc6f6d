package catalog

import (
	"context"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

// confirmCourseDeletion runs phase two of a course deletion: delete from
// the primary replica, then — only after the primary succeeds — from the
// secondary, then remove the local record. Any remote failure leaves the
// record pending-delete; a later call can pick it up again.
func (s *Service) confirmCourseDeletion(ctx context.Context, c *schema.Course) {
	release, err := s.acquire(ctx)
	if err != nil {
		s.logger.Printf("Deletion of course %d not confirmed: %v", c.ID, err)
		return
	}
	defer release()

	if err := s.primary.DeleteCourse(ctx, c.ID); err != nil {
		s.logger.Printf("Course %d stays pending-delete: %s failed: %v", c.ID, s.primary.Name(), err)
		return
	}
	if err := s.secondary.DeleteCourse(ctx, c.ID); err != nil {
		s.logger.Printf("Course %d stays pending-delete: %s failed: %v", c.ID, s.secondary.Name(), err)
		return
	}

	if err := s.db.DeleteCourse(ctx, c.ID); err != nil {
		s.logger.Printf("Failed to remove course %d locally: %v", c.ID, err)
		return
	}

	s.logActivity(ctx, schema.ActivityCourse,
		fmt.Sprintf("Deleted course %q from both replicas", c.Name), c.ID)
	s.recordEvent(schema.ActivityCourse, c.ID, "deleted", c.Name)
	s.logger.Printf("Course %d deletion confirmed on both replicas", c.ID)
}

// confirmInstanceDeletion runs phase two of an instance deletion with the
// same ordering contract as confirmCourseDeletion.
func (s *Service) confirmInstanceDeletion(ctx context.Context, inst *schema.Instance) {
	release, err := s.acquire(ctx)
	if err != nil {
		s.logger.Printf("Deletion of instance %d not confirmed: %v", inst.ID, err)
		return
	}
	defer release()

	if err := s.primary.DeleteInstance(ctx, inst.CourseID, inst.ID); err != nil {
		s.logger.Printf("Instance %d stays pending-delete: %s failed: %v", inst.ID, s.primary.Name(), err)
		return
	}
	if err := s.secondary.DeleteInstance(ctx, inst.CourseID, inst.ID); err != nil {
		s.logger.Printf("Instance %d stays pending-delete: %s failed: %v", inst.ID, s.secondary.Name(), err)
		return
	}

	if err := s.db.DeleteInstance(ctx, inst.ID); err != nil {
		s.logger.Printf("Failed to remove instance %d locally: %v", inst.ID, err)
		return
	}

	s.logActivity(ctx, schema.ActivityInstance,
		fmt.Sprintf("Deleted class on %s from both replicas", inst.Date), inst.ID)
	s.recordEvent(schema.ActivityInstance, inst.ID, "deleted", inst.Date)
	s.logger.Printf("Instance %d deletion confirmed on both replicas", inst.ID)
}

// ConfirmPendingDeletions retries phase two for every record still marked
// pending-delete, typically after a replica comes back online.
func (s *Service) ConfirmPendingDeletions(ctx context.Context) error {
	courses, err := s.db.ListCoursesPendingDelete(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending-delete courses: %w", err)
	}
	instances, err := s.db.ListInstancesPendingDelete(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending-delete instances: %w", err)
	}

	// Instances first so a course deletion does not cascade away rows we
	// still want to report on individually.
	for _, inst := range instances {
		s.confirmInstanceDeletion(ctx, inst)
	}
	for _, c := range courses {
		s.confirmCourseDeletion(ctx, c)
	}
	return nil
}
