// Package autosync schedules catalog uploads to the replica pair.
//
// Mutations poke the scheduler through TriggerAutoSync; each poke resets
// a trailing debounce window (five minutes by default) so a burst of
// edits produces a single sync once the catalog goes quiet. ForceSync
// bypasses both the enabled flag and the debounce for user-initiated
// syncs. At most one sync runs at a time; a trigger landing mid-sync is
// dropped, not queued.
//
// Every attempt that reaches the upload stage leaves a sync history row
// in the store, opened as in-progress and resolved to success or failed.
// Attempts skipped while offline or before the replicas are initialized
// leave no row.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/universalyoga/studiosync/internal/replica"
	"github.com/universalyoga/studiosync/internal/schema"
	"github.com/universalyoga/studiosync/internal/store"
)

// DefaultDebounce is the trailing quiet window after the last data
// change before an automatic sync fires.
const DefaultDebounce = 5 * time.Minute

// ErrSyncInProgress is returned when a sync is requested while another
// one is still running.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrOffline is returned when a sync is requested while the network is
// down or a replica is not initialized.
var ErrOffline = errors.New("replicas unreachable")

// Result summarizes one finished sync attempt.
type Result struct {
	// Status is the terminal history status (success or failed).
	Status string

	// Type is the sync type (auto or force).
	Type string

	// Duration is the wall time of the attempt.
	Duration time.Duration

	// DataSize is the number of records in the uploaded snapshot.
	DataSize int

	// HistoryID is the id of the sync history row for this attempt.
	HistoryID string
}

// Config holds configuration for the scheduler.
type Config struct {
	// Store is the local record store. Required.
	Store *store.DB

	// Primary and Secondary are the two replicas, in write order.
	Primary   replica.Replica
	Secondary replica.Replica

	// Debounce is the trailing quiet window (default: DefaultDebounce).
	Debounce time.Duration

	// Enabled starts the scheduler with automatic syncs on. User syncs
	// via ForceSync work either way.
	Enabled bool

	// Online reports network availability. Nil means always online.
	Online func() bool

	// OnSuccess runs after a successful sync, before the status flips to
	// idle. The catalog's MarkAllSynced is wired here. Optional.
	OnSuccess func(ctx context.Context, result *Result)

	// OnEvent receives lifecycle notifications ("sync_started",
	// "sync_complete", "sync_failed") for dashboards. Optional.
	OnEvent func(kind string, result *Result)

	// Logger for scheduler activity (default: stderr logger).
	Logger *log.Logger
}

// Scheduler debounces automatic syncs and serializes all sync attempts.
type Scheduler struct {
	db        *store.DB
	primary   replica.Replica
	secondary replica.Replica
	debounce  time.Duration
	online    func() bool
	onSuccess func(ctx context.Context, result *Result)
	onEvent   func(kind string, result *Result)
	logger    *log.Logger

	mu      sync.Mutex
	enabled bool
	syncing bool
	closed  bool
	timer   *time.Timer // pending debounced sync, single slot
	status  string
	last    *Result

	wg sync.WaitGroup
}

// New creates a scheduler.
func New(config Config) (*Scheduler, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config.Primary == nil || config.Secondary == nil {
		return nil, fmt.Errorf("both replicas are required")
	}

	debounce := config.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[autosync] ", log.LstdFlags)
	}
	online := config.Online
	if online == nil {
		online = func() bool { return true }
	}

	return &Scheduler{
		db:        config.Store,
		primary:   config.Primary,
		secondary: config.Secondary,
		debounce:  debounce,
		online:    online,
		onSuccess: config.OnSuccess,
		onEvent:   config.OnEvent,
		logger:    logger,
		enabled:   config.Enabled,
		status:    "Idle",
	}, nil
}

// SetEnabled turns automatic syncing on or off. Disabling cancels any
// pending debounced sync; a sync already running is not interrupted.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	if !enabled && s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.logger.Printf("Auto-sync enabled: %v", enabled)
}

// SetDebounce changes the debounce window for subsequent triggers. A
// window already counting down keeps its old duration.
func (s *Scheduler) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d != s.debounce {
		s.debounce = d
		s.logger.Printf("Debounce window set to %s", d)
	}
}

// Enabled reports whether automatic syncing is on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// IsSyncing reports whether a sync is currently running.
func (s *Scheduler) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Status returns a human-readable state line for status displays.
func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastResult returns the most recent finished sync attempt, or nil.
func (s *Scheduler) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// TriggerAutoSync notes a data change and (re)starts the debounce
// window. While changes keep arriving the window keeps sliding, so the
// sync fires once the catalog has been quiet for the full window. No-op
// when disabled, offline, or shut down.
func (s *Scheduler) TriggerAutoSync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.enabled {
		return
	}
	if !s.online() || !s.primary.Ready() || !s.secondary.Ready() {
		s.status = "Offline - sync will resume when connected"
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.runScheduled)
	s.status = fmt.Sprintf("Auto-sync in %s", s.debounce)
}

// runScheduled fires from the debounce timer.
func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	if _, err := s.sync(context.Background(), schema.SyncTypeAuto, "data_change"); err != nil {
		s.logger.Printf("Auto-sync failed: %v", err)
	}
}

// ForceSync runs a sync immediately, bypassing the enabled flag and the
// debounce window. It still refuses to overlap a running sync and still
// requires the replicas to be reachable.
func (s *Scheduler) ForceSync(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduler is shut down")
	}
	// A forced sync supersedes any pending debounced one.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	return s.sync(ctx, schema.SyncTypeForce, "user")
}

// Shutdown cancels any pending debounced sync and waits for a running
// sync to finish. The scheduler cannot be restarted.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Printf("Scheduler stopped")
}

// sync performs one attempt: snapshot, primary upload, secondary upload,
// history bookkeeping. The secondary is never contacted unless the
// primary upload succeeded.
func (s *Scheduler) sync(ctx context.Context, typ, trigger string) (*Result, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	if !s.online() || !s.primary.Ready() || !s.secondary.Ready() {
		s.status = "Offline - sync will resume when connected"
		s.mu.Unlock()
		return nil, ErrOffline
	}
	s.syncing = true
	s.status = "Syncing..."
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	start := time.Now()
	history := schema.NewSyncHistory(typ, trigger)
	if err := s.db.InsertSyncHistory(ctx, history); err != nil {
		// No row exists to resolve; report the attempt without a
		// history id.
		history.ID = ""
		return s.finish(ctx, history, start, 0, fmt.Errorf("failed to open history record: %w", err))
	}
	s.emit("sync_started", &Result{Status: history.Status, Type: typ, HistoryID: history.ID})

	courses, err := s.db.ListCourses(ctx)
	if err != nil {
		return s.finish(ctx, history, start, 0, fmt.Errorf("failed to snapshot courses: %w", err))
	}
	instances, err := s.db.ListInstances(ctx)
	if err != nil {
		return s.finish(ctx, history, start, 0, fmt.Errorf("failed to snapshot instances: %w", err))
	}
	dataSize := len(courses) + len(instances)

	if err := s.primary.Upload(ctx, courses, instances); err != nil {
		return s.finish(ctx, history, start, dataSize, fmt.Errorf("%s upload failed: %w", s.primary.Name(), err))
	}
	if err := s.secondary.Upload(ctx, courses, instances); err != nil {
		return s.finish(ctx, history, start, dataSize, fmt.Errorf("%s upload failed: %w", s.secondary.Name(), err))
	}

	return s.finish(ctx, history, start, dataSize, nil)
}

// finish resolves the history row and the scheduler status for one
// attempt.
func (s *Scheduler) finish(ctx context.Context, history *schema.SyncHistoryRecord, start time.Time, dataSize int, syncErr error) (*Result, error) {
	duration := time.Since(start)

	history.Duration = duration.Milliseconds()
	history.DataSize = dataSize
	if syncErr != nil {
		history.Status = schema.SyncFailed
	} else {
		history.Status = schema.SyncSuccess
	}
	if history.ID != "" {
		if err := s.db.UpdateSyncHistory(ctx, history); err != nil {
			s.logger.Printf("Failed to resolve history record %s: %v", history.ID, err)
		}
	}

	result := &Result{
		Status:    history.Status,
		Type:      history.Type,
		Duration:  duration,
		DataSize:  dataSize,
		HistoryID: history.ID,
	}

	if syncErr == nil && s.onSuccess != nil {
		s.onSuccess(ctx, result)
	}

	s.mu.Lock()
	s.last = result
	if syncErr != nil {
		s.status = fmt.Sprintf("Sync failed: %v", syncErr)
	} else {
		s.status = fmt.Sprintf("Synced %d records in %s", dataSize, duration.Round(time.Millisecond))
	}
	s.mu.Unlock()

	if syncErr != nil {
		s.emit("sync_failed", result)
		return result, syncErr
	}
	s.emit("sync_complete", result)
	s.logger.Printf("Sync %s: %d records in %s", history.Type, dataSize, duration.Round(time.Millisecond))
	return result, nil
}

func (s *Scheduler) emit(kind string, result *Result) {
	if s.onEvent != nil {
		s.onEvent(kind, result)
	}
}
