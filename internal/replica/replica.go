// Package replica defines the contract for the two remote mirrors of the
// local catalog and an HTTP implementation of it.
//
// A replica is an opaque asynchronous document store. Uploads carry the
// entire current catalog snapshot as one document per course (full
// replace, not an incremental diff); deletes remove a course document or
// one instance within it. The dual-backend write discipline — the
// secondary is only contacted after the primary succeeds — is enforced by
// the callers (the autosync scheduler and the deletion coordinator), not
// here.
package replica

import (
	"context"
	"strconv"

	"github.com/universalyoga/studiosync/internal/schema"
)

// Replica is one remote mirror of the catalog.
//
// Implementations must be safe for concurrent use. Operations return an
// error on any failure; callers treat a failed replica write as "state
// does not advance" rather than a fatal condition.
type Replica interface {
	// Name identifies the replica in logs and status strings.
	Name() string

	// Ready reports whether the replica has been initialized and can
	// accept operations. Sync attempts are skipped while any replica is
	// not ready.
	Ready() bool

	// Upload replaces the replica's copy of the catalog with the given
	// full snapshot.
	Upload(ctx context.Context, courses []*schema.Course, instances []*schema.Instance) error

	// DeleteCourse removes a course document, including its instances.
	DeleteCourse(ctx context.Context, courseID int) error

	// DeleteInstance removes one instance from its course document.
	DeleteInstance(ctx context.Context, courseID, instanceID int) error
}

// Document is the per-course wire payload, keyed by course id at the
// replica. Instances are keyed by their id within the document.
type Document struct {
	CourseInfo  *schema.Course              `json:"courseInfo"`
	Instances   map[string]*schema.Instance `json:"instances"`
	LastUpdated int64                       `json:"lastUpdated"` // epoch millis
}

// BuildDocuments groups a catalog snapshot into per-course documents.
// Courses without instances get an empty instance map, matching the
// full-replace contract.
func BuildDocuments(courses []*schema.Course, instances []*schema.Instance, lastUpdated int64) map[int]*Document {
	docs := make(map[int]*Document, len(courses))
	for _, c := range courses {
		docs[c.ID] = &Document{
			CourseInfo:  c,
			Instances:   make(map[string]*schema.Instance),
			LastUpdated: lastUpdated,
		}
	}
	for _, inst := range instances {
		doc, ok := docs[inst.CourseID]
		if !ok {
			// Orphaned instance; skip rather than invent a course doc.
			continue
		}
		doc.Instances[strconv.Itoa(inst.ID)] = inst
	}
	return docs
}
