package autosync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/universalyoga/studiosync/internal/schema"
	"github.com/universalyoga/studiosync/internal/store"
)

// fakeReplica counts uploads and can fail or block them.
type fakeReplica struct {
	name string

	mu         sync.Mutex
	uploads    int
	failUpload bool
	block      chan struct{} // if set, Upload waits on it
}

func (f *fakeReplica) Name() string { return f.name }
func (f *fakeReplica) Ready() bool  { return true }

func (f *fakeReplica) Upload(ctx context.Context, courses []*schema.Course, instances []*schema.Instance) error {
	f.mu.Lock()
	block := f.block
	fail := f.failUpload
	if !fail {
		f.uploads++
	}
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return errors.New("replica unavailable")
	}
	return nil
}

func (f *fakeReplica) DeleteCourse(ctx context.Context, courseID int) error { return nil }
func (f *fakeReplica) DeleteInstance(ctx context.Context, courseID, instanceID int) error {
	return nil
}

func (f *fakeReplica) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

func setupScheduler(t *testing.T, config Config) (*Scheduler, *store.DB, *fakeReplica, *fakeReplica) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	primary := &fakeReplica{name: "primary"}
	secondary := &fakeReplica{name: "secondary"}

	config.Store = db
	config.Primary = primary
	config.Secondary = secondary

	s, err := New(config)
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	t.Cleanup(s.Shutdown)

	return s, db, primary, secondary
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDebounceCoalescesTriggers(t *testing.T) {
	s, db, primary, secondary := setupScheduler(t, Config{
		Enabled:  true,
		Debounce: 30 * time.Millisecond,
	})

	for range 5 {
		s.TriggerAutoSync()
	}

	waitFor(t, 2*time.Second, func() bool { return primary.uploadCount() == 1 })
	// Give a straggler sync a chance to surface.
	time.Sleep(60 * time.Millisecond)

	if n := primary.uploadCount(); n != 1 {
		t.Errorf("expected exactly 1 primary upload, got %d", n)
	}
	if n := secondary.uploadCount(); n != 1 {
		t.Errorf("expected exactly 1 secondary upload, got %d", n)
	}

	history, err := db.ListSyncHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSyncHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	h := history[0]
	if h.Status != schema.SyncSuccess || h.Type != schema.SyncTypeAuto || h.Trigger != "data_change" {
		t.Errorf("unexpected history row: %+v", h)
	}
}

func TestTriggerRestartsDebounceWindow(t *testing.T) {
	s, _, primary, _ := setupScheduler(t, Config{
		Enabled:  true,
		Debounce: 60 * time.Millisecond,
	})

	// Keep poking inside the window; no sync may fire yet.
	for range 4 {
		s.TriggerAutoSync()
		time.Sleep(20 * time.Millisecond)
	}
	if n := primary.uploadCount(); n != 0 {
		t.Fatalf("sync fired inside the debounce window: %d uploads", n)
	}

	waitFor(t, 2*time.Second, func() bool { return primary.uploadCount() == 1 })
}

func TestTriggerIgnoredWhenDisabled(t *testing.T) {
	s, db, primary, _ := setupScheduler(t, Config{
		Enabled:  false,
		Debounce: 10 * time.Millisecond,
	})

	s.TriggerAutoSync()
	time.Sleep(50 * time.Millisecond)

	if n := primary.uploadCount(); n != 0 {
		t.Errorf("disabled scheduler must not sync, got %d uploads", n)
	}
	history, err := db.ListSyncHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSyncHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected no history rows, got %d", len(history))
	}
}

func TestDisableCancelsPendingSync(t *testing.T) {
	s, _, primary, _ := setupScheduler(t, Config{
		Enabled:  true,
		Debounce: 30 * time.Millisecond,
	})

	s.TriggerAutoSync()
	s.SetEnabled(false)
	time.Sleep(80 * time.Millisecond)

	if n := primary.uploadCount(); n != 0 {
		t.Errorf("cancelled sync still fired: %d uploads", n)
	}
}

func TestForceSyncBypassesEnabled(t *testing.T) {
	s, _, primary, secondary := setupScheduler(t, Config{Enabled: false})

	result, err := s.ForceSync(context.Background())
	if err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}
	if result.Status != schema.SyncSuccess || result.Type != schema.SyncTypeForce {
		t.Errorf("unexpected result: %+v", result)
	}
	if primary.uploadCount() != 1 || secondary.uploadCount() != 1 {
		t.Errorf("expected 1 upload per replica, got primary=%d secondary=%d",
			primary.uploadCount(), secondary.uploadCount())
	}
}

func TestForceSyncPrimaryFailure(t *testing.T) {
	s, db, primary, secondary := setupScheduler(t, Config{})
	primary.failUpload = true

	if _, err := s.ForceSync(context.Background()); err == nil {
		t.Fatal("expected error when primary upload fails")
	}

	// The secondary must never be contacted when the primary fails.
	if n := secondary.uploadCount(); n != 0 {
		t.Errorf("secondary contacted after primary failure: %d uploads", n)
	}

	history, err := db.ListSyncHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSyncHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Status != schema.SyncFailed {
		t.Errorf("expected one failed history row, got %+v", history)
	}
}

func TestForceSyncOffline(t *testing.T) {
	s, db, _, _ := setupScheduler(t, Config{
		Online: func() bool { return false },
	})

	if _, err := s.ForceSync(context.Background()); !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}

	// Offline attempts leave no history row.
	history, err := db.ListSyncHistory(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSyncHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected no history rows, got %d", len(history))
	}
}

func TestHistoryOpenFailure(t *testing.T) {
	s, db, _, secondary := setupScheduler(t, Config{})

	// A closed store makes the history insert fail before any upload.
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	result, err := s.ForceSync(context.Background())
	if err == nil {
		t.Fatal("expected error when history cannot be opened")
	}
	if result == nil {
		t.Fatal("expected a result describing the failed attempt")
	}
	if result.Status != schema.SyncFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	// No row was inserted, so the result must not reference one.
	if result.HistoryID != "" {
		t.Errorf("HistoryID = %q, want empty", result.HistoryID)
	}
	if n := secondary.uploadCount(); n != 0 {
		t.Errorf("upload attempted despite failed bookkeeping: %d", n)
	}
}

func TestSyncIsNotReentrant(t *testing.T) {
	s, _, primary, _ := setupScheduler(t, Config{})

	block := make(chan struct{})
	primary.mu.Lock()
	primary.block = block
	primary.mu.Unlock()

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = s.ForceSync(context.Background())
	}()
	<-started
	waitFor(t, 2*time.Second, func() bool { return s.IsSyncing() })

	if _, err := s.ForceSync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}
	close(block)

	waitFor(t, 2*time.Second, func() bool { return !s.IsSyncing() })
}

func TestOnSuccessAndEvents(t *testing.T) {
	var mu sync.Mutex
	var kinds []string
	succeeded := false

	s, _, _, _ := setupScheduler(t, Config{
		OnSuccess: func(ctx context.Context, result *Result) {
			mu.Lock()
			succeeded = true
			mu.Unlock()
		},
		OnEvent: func(kind string, result *Result) {
			mu.Lock()
			kinds = append(kinds, kind)
			mu.Unlock()
		},
	})

	if _, err := s.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !succeeded {
		t.Error("OnSuccess hook not invoked")
	}
	if len(kinds) != 2 || kinds[0] != "sync_started" || kinds[1] != "sync_complete" {
		t.Errorf("unexpected event sequence: %v", kinds)
	}
}
