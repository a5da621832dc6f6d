package catalog

import (
	"context"
	"fmt"

	"github.com/universalyoga/studiosync/internal/schema"
)

// cascadeCourseUpdate pushes schedule-derived fields from an updated
// course down to every owned instance: start time from the course time,
// end time recomputed from the course duration, capacity re-snapshotted,
// and enrollment clamped to the new capacity. Each instance is handled
// in isolation so a bad row cannot block the rest; touched instances go
// back to pending.
func (s *Service) cascadeCourseUpdate(ctx context.Context, c *schema.Course) {
	instances, err := s.db.ListInstancesByCourse(ctx, c.ID)
	if err != nil {
		s.logger.Printf("Cascade skipped for course %d: %v", c.ID, err)
		return
	}

	updated := 0
	for _, inst := range instances {
		if inst.SyncStatus == schema.StatusPendingDelete {
			continue
		}

		inst.StartTime = c.Time
		inst.EndTime = schema.AddMinutes(c.Time, c.Duration)
		inst.Capacity = c.Capacity
		inst.ClampEnrolled()
		inst.SyncStatus = schema.StatusPending

		if err := s.db.UpdateInstance(ctx, inst); err != nil {
			s.logger.Printf("Cascade failed for instance %d: %v", inst.ID, err)
			continue
		}
		updated++
	}

	if updated > 0 {
		s.logger.Printf("Cascaded course %d schedule to %d instances", c.ID, updated)
		s.logActivity(ctx, schema.ActivityInstance,
			fmt.Sprintf("Refreshed %d classes after course %q changed", updated, c.Name), c.ID)
	}
}

// RefreshInstances re-runs the cascade for one course on demand, for
// repairing instances that drifted from their course schedule.
func (s *Service) RefreshInstances(ctx context.Context, courseID int) error {
	c, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	s.cascadeCourseUpdate(ctx, c)
	return nil
}
