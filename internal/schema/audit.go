package schema

import (
	"time"

	"github.com/google/uuid"
)

// Activity type tags. The set is open; these cover the built-in
// operations.
const (
	ActivityCourse   = "course"
	ActivityInstance = "instance"
	ActivitySync     = "sync"
	ActivitySystem   = "system"
)

// ActivityRecord is an immutable audit entry written for every mutating
// operation. Records are never updated or deleted except by a bulk reset.
type ActivityRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	RelatedID   string `json:"relatedId,omitempty"`
}

// NewActivity creates an activity entry with a fresh ID and the current
// timestamp.
func NewActivity(typ, description, relatedID string) *ActivityRecord {
	return &ActivityRecord{
		ID:          uuid.NewString(),
		Type:        typ,
		Description: description,
		Timestamp:   time.Now().Format("2006-01-02 15:04:05"),
		RelatedID:   relatedID,
	}
}

// Sync history statuses and types.
const (
	SyncInProgress = "in_progress"
	SyncSuccess    = "success"
	SyncFailed     = "failed"

	SyncTypeAuto  = "auto"
	SyncTypeForce = "force"
)

// SyncHistoryRecord captures one sync attempt. A row is inserted with
// status "in_progress" when the attempt starts and updated exactly once
// at completion.
//
// RetryCount is always zero today: failed attempts are not retried by the
// scheduler. The column exists so a bounded-retry queue can be added
// without a schema change.
type SyncHistoryRecord struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status"` // in_progress, success, failed
	Type       string `json:"type"`   // auto, force
	Trigger    string `json:"trigger"`
	Duration   int64  `json:"duration"` // milliseconds
	RetryCount int    `json:"retryCount"`
	DataSize   int    `json:"dataSize"` // records covered by the attempt
}

// NewSyncHistory creates an in-progress history record for a sync attempt
// of the given type ("auto" or "force") and trigger description.
func NewSyncHistory(typ, trigger string) *SyncHistoryRecord {
	return &SyncHistoryRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Format(time.RFC3339),
		Status:    SyncInProgress,
		Type:      typ,
		Trigger:   trigger,
	}
}
