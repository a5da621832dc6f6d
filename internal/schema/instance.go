package schema

import (
	"fmt"
	"strings"
)

// Instance represents one concrete dated occurrence of a Course.
//
// StartTime, EndTime and Capacity are derived from the owning Course and
// are rewritten by the cascade updater whenever the course schedule
// changes. Enrolled is clamped so it never exceeds Capacity.
type Instance struct {
	ID       int `json:"id"`
	CourseID int `json:"courseId"`

	Date     string `json:"date"` // yyyy-mm-dd, on a weekday of the owning course
	Teacher  string `json:"teacher"`
	Comments string `json:"comments,omitempty"`

	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Enrolled  int    `json:"enrolled"`
	Capacity  int    `json:"capacity"` // snapshot copied from the owning course

	SyncStatus SyncStatus `json:"syncStatus"`
}

// Validate checks if the Instance has valid field values.
func (i *Instance) Validate() error {
	if i.CourseID <= 0 {
		return fmt.Errorf("courseId is required")
	}
	if strings.TrimSpace(i.Date) == "" {
		return fmt.Errorf("date is required")
	}
	if strings.TrimSpace(i.Teacher) == "" {
		return fmt.Errorf("teacher is required")
	}
	if i.Enrolled < 0 {
		return fmt.Errorf("enrolled must not be negative (got %d)", i.Enrolled)
	}
	if i.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive (got %d)", i.Capacity)
	}
	if i.Enrolled > i.Capacity {
		return fmt.Errorf("enrolled %d exceeds capacity %d", i.Enrolled, i.Capacity)
	}
	return nil
}

// ClampEnrolled caps Enrolled at Capacity. Returns true if a clamp
// happened.
func (i *Instance) ClampEnrolled() bool {
	if i.Enrolled > i.Capacity {
		i.Enrolled = i.Capacity
		return true
	}
	return false
}
