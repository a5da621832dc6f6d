package catalog

import (
	"context"
	"strconv"

	"github.com/universalyoga/studiosync/internal/schema"
)

// logActivity appends an audit entry. Audit writes are best effort: a
// failure is logged but never fails the mutation that produced it.
func (s *Service) logActivity(ctx context.Context, typ, description string, relatedID int) {
	related := ""
	if relatedID != 0 {
		related = strconv.Itoa(relatedID)
	}
	if err := s.db.InsertActivity(ctx, schema.NewActivity(typ, description, related)); err != nil {
		s.logger.Printf("Failed to record activity %q: %v", description, err)
	}
}

// RecentActivity returns the newest audit entries, up to limit.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]*schema.ActivityRecord, error) {
	return s.db.ListActivity(ctx, limit)
}
