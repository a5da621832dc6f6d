package schema

// SyncStatus is the per-record synchronization state.
//
// The numeric values are the stored column values and must not be
// reordered: 0 = pending, 1 = synced, 2 = pending delete.
type SyncStatus int

const (
	// StatusPending marks a record whose latest local write has not been
	// confirmed at both remote replicas.
	StatusPending SyncStatus = 0

	// StatusSynced marks a record whose last dual-backend write succeeded.
	StatusSynced SyncStatus = 1

	// StatusPendingDelete marks a record the caller wants removed. The
	// record stays in the store, queryable, until both replicas confirm
	// the remote deletion.
	StatusPendingDelete SyncStatus = 2
)

// String returns a human-readable representation of the status.
func (s SyncStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSynced:
		return "synced"
	case StatusPendingDelete:
		return "pending_delete"
	default:
		return "unknown"
	}
}
