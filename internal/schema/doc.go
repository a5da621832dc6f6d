// Package schema defines the record types for the studio catalog.
//
// # Overview
//
// The catalog tracks two kinds of records: a Course is a recurring weekly
// class template (schedule, price, capacity, instructor) and an Instance is
// one concrete dated occurrence of a Course. Both carry a SyncStatus field
// that drives the synchronization state machine:
//
//	StatusPending       local write not yet confirmed at both replicas
//	StatusSynced        last known-good dual write succeeded
//	StatusPendingDelete deletion requested, remote confirmation outstanding
//
// Create and update operations always reset a record to StatusPending.
// Delete requests move it to StatusPendingDelete; the record is only
// physically removed from the store once both remote replicas confirm
// the deletion.
//
// # Audit records
//
// Every mutating operation appends an ActivityRecord, and every sync
// attempt produces one SyncHistoryRecord that is created as "in_progress"
// and finalized as "success" or "failed". Neither is ever updated after
// completion except by a bulk reset.
//
// # Time handling
//
// Course times are wall-clock strings ("09:00" or "9:00 AM"). AddMinutes
// implements the end-time arithmetic used by the cascade updater,
// including 12-hour normalization and wrap past midnight.
package schema
