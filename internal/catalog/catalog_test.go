package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/universalyoga/studiosync/internal/schema"
	"github.com/universalyoga/studiosync/internal/store"
)

// fakeReplica records delete calls and can be told to fail them.
type fakeReplica struct {
	name string

	mu         sync.Mutex
	deletes    []string
	failDelete bool
}

func (f *fakeReplica) Name() string { return f.name }
func (f *fakeReplica) Ready() bool  { return true }

func (f *fakeReplica) Upload(ctx context.Context, courses []*schema.Course, instances []*schema.Instance) error {
	return nil
}

func (f *fakeReplica) DeleteCourse(ctx context.Context, courseID int) error {
	return f.record(fmt.Sprintf("course/%d", courseID))
}

func (f *fakeReplica) DeleteInstance(ctx context.Context, courseID, instanceID int) error {
	return f.record(fmt.Sprintf("course/%d/instance/%d", courseID, instanceID))
}

func (f *fakeReplica) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("replica unavailable")
	}
	f.deletes = append(f.deletes, op)
	return nil
}

func (f *fakeReplica) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

// notifyCounter counts autosync trigger pokes.
type notifyCounter struct {
	mu sync.Mutex
	n  int
}

func (c *notifyCounter) TriggerAutoSync() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *notifyCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// eventLog records dashboard hook invocations as "kind/action/id".
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) record(kind string, id int, action, name string) {
	l.mu.Lock()
	l.entries = append(l.entries, fmt.Sprintf("%s/%s/%d", kind, action, id))
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type testEnv struct {
	svc       *Service
	db        *store.DB
	primary   *fakeReplica
	secondary *fakeReplica
	notifier  *notifyCounter
	events    *eventLog
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	env := &testEnv{
		db:        db,
		primary:   &fakeReplica{name: "primary"},
		secondary: &fakeReplica{name: "secondary"},
		notifier:  &notifyCounter{},
		events:    &eventLog{},
	}

	svc, err := New(Config{
		Store:     db,
		Primary:   env.primary,
		Secondary: env.secondary,
		Notifier:  env.notifier,
		OnRecord:  env.events.record,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	env.svc = svc
	return env
}

func addCourse(t *testing.T, env *testEnv) *schema.Course {
	t.Helper()

	c := &schema.Course{
		Name:       "Flow Yoga",
		DaysOfWeek: "Monday",
		Time:       "10:00",
		Capacity:   20,
		Duration:   60,
		Price:      10,
	}
	if _, err := env.svc.AddCourse(context.Background(), c); err != nil {
		t.Fatalf("AddCourse failed: %v", err)
	}
	return c
}

func addInstance(t *testing.T, env *testEnv, courseID int) *schema.Instance {
	t.Helper()

	inst := &schema.Instance{
		CourseID: courseID,
		Date:     "2026-08-24", // a Monday
		Teacher:  "Asha",
		Enrolled: 15,
	}
	if _, err := env.svc.AddInstance(context.Background(), inst); err != nil {
		t.Fatalf("AddInstance failed: %v", err)
	}
	return inst
}

func TestAddCourseRejectsInvalid(t *testing.T) {
	env := setupService(t)

	c := &schema.Course{Name: "Broken", DaysOfWeek: "Monday", Time: "10:00"}
	if _, err := env.svc.AddCourse(context.Background(), c); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if n := env.notifier.count(); n != 0 {
		t.Errorf("rejected mutation must not notify, got %d pokes", n)
	}
}

func TestAddInstanceDerivesScheduleFields(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	got, err := env.svc.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if got.StartTime != "10:00" || got.EndTime != "11:00" {
		t.Errorf("schedule not derived: start=%s end=%s", got.StartTime, got.EndTime)
	}
	if got.Capacity != 20 {
		t.Errorf("capacity not snapshotted, got %d", got.Capacity)
	}
	if got.SyncStatus != schema.StatusPending {
		t.Errorf("new instance must be pending, got %v", got.SyncStatus)
	}
}

func TestAddInstanceRejectsWrongWeekday(t *testing.T) {
	env := setupService(t)

	c := addCourse(t, env)
	inst := &schema.Instance{
		CourseID: c.ID,
		Date:     "2026-08-25", // a Tuesday
		Teacher:  "Asha",
	}
	if _, err := env.svc.AddInstance(context.Background(), inst); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for off-schedule date, got %v", err)
	}
}

func TestAddInstanceRejectsMissingCourse(t *testing.T) {
	env := setupService(t)

	inst := &schema.Instance{CourseID: 42, Date: "2026-08-24", Teacher: "Asha"}
	if _, err := env.svc.AddInstance(context.Background(), inst); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing course, got %v", err)
	}
}

func TestUpdateCourseCascades(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	// Pretend a previous sync confirmed the instance.
	if _, err := env.db.MarkPendingInstancesSynced(ctx); err != nil {
		t.Fatalf("failed to mark instances synced: %v", err)
	}

	c.Time = "08:00"
	c.Capacity = 10
	if err := env.svc.UpdateCourse(ctx, c); err != nil {
		t.Fatalf("UpdateCourse failed: %v", err)
	}

	got, err := env.svc.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if got.StartTime != "08:00" || got.EndTime != "09:00" {
		t.Errorf("cascade did not recompute times: start=%s end=%s", got.StartTime, got.EndTime)
	}
	if got.Capacity != 10 {
		t.Errorf("cascade did not snapshot capacity, got %d", got.Capacity)
	}
	if got.Enrolled != 10 {
		t.Errorf("enrollment not clamped to new capacity, got %d", got.Enrolled)
	}
	if got.SyncStatus != schema.StatusPending {
		t.Errorf("cascaded instance must return to pending, got %v", got.SyncStatus)
	}
}

func TestUpdateMissingCourse(t *testing.T) {
	env := setupService(t)

	c := &schema.Course{
		ID: 99, Name: "Ghost", DaysOfWeek: "Monday", Time: "10:00",
		Capacity: 10, Duration: 60,
	}
	if err := env.svc.UpdateCourse(context.Background(), c); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCourseTwoPhase(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	if err := env.svc.DeleteCourse(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}
	env.svc.Wait()

	if env.primary.deleteCount() != 1 || env.secondary.deleteCount() != 1 {
		t.Errorf("expected one delete per replica, got primary=%d secondary=%d",
			env.primary.deleteCount(), env.secondary.deleteCount())
	}
	if _, err := env.svc.GetCourse(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("course must be physically removed after confirmation, got %v", err)
	}
}

func TestDeleteCoursePrimaryFailure(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	env.primary.failDelete = true

	if err := env.svc.DeleteCourse(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}
	env.svc.Wait()

	// The secondary must never be contacted when the primary fails.
	if n := env.secondary.deleteCount(); n != 0 {
		t.Errorf("secondary contacted after primary failure: %d deletes", n)
	}

	// The record stays visible and marked pending-delete.
	got, err := env.svc.GetCourse(ctx, c.ID)
	if err != nil {
		t.Fatalf("course must survive a failed deletion: %v", err)
	}
	if got.SyncStatus != schema.StatusPendingDelete {
		t.Errorf("status = %v, want pending_delete", got.SyncStatus)
	}
}

func TestConfirmPendingDeletionsRetries(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	env.primary.failDelete = true
	if err := env.svc.DeleteCourse(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}
	env.svc.Wait()

	env.primary.failDelete = false
	if err := env.svc.ConfirmPendingDeletions(ctx); err != nil {
		t.Fatalf("ConfirmPendingDeletions failed: %v", err)
	}

	if _, err := env.svc.GetCourse(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("course must be removed after retry, got %v", err)
	}
}

func TestDeleteInstanceTwoPhase(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	if err := env.svc.DeleteInstance(ctx, inst.ID); err != nil {
		t.Fatalf("DeleteInstance failed: %v", err)
	}
	env.svc.Wait()

	want := fmt.Sprintf("course/%d/instance/%d", c.ID, inst.ID)
	if env.primary.deleteCount() != 1 || env.primary.deletes[0] != want {
		t.Errorf("unexpected primary deletes: %v", env.primary.deletes)
	}
	if _, err := env.svc.GetInstance(ctx, inst.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("instance must be physically removed, got %v", err)
	}
}

func TestUpdateEnrollmentClamp(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	if err := env.svc.UpdateEnrollment(ctx, inst.ID, 35); err != nil {
		t.Fatalf("UpdateEnrollment failed: %v", err)
	}
	got, err := env.svc.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if got.Enrolled != 20 {
		t.Errorf("enrollment not clamped to capacity, got %d", got.Enrolled)
	}

	if err := env.svc.UpdateEnrollment(ctx, inst.ID, -1); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for negative enrollment, got %v", err)
	}
}

func TestMutationsNotifyScheduler(t *testing.T) {
	env := setupService(t)

	c := addCourse(t, env)
	addInstance(t, env, c.ID)

	if n := env.notifier.count(); n != 2 {
		t.Errorf("expected 2 scheduler pokes, got %d", n)
	}
}

func TestMutationsEmitRecordEvents(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	c.Capacity = 25
	if err := env.svc.UpdateCourse(ctx, c); err != nil {
		t.Fatalf("UpdateCourse failed: %v", err)
	}

	if err := env.svc.DeleteInstance(ctx, inst.ID); err != nil {
		t.Fatalf("DeleteInstance failed: %v", err)
	}
	env.svc.Wait()

	want := []string{
		fmt.Sprintf("course/created/%d", c.ID),
		fmt.Sprintf("instance/created/%d", inst.ID),
		fmt.Sprintf("course/updated/%d", c.ID),
		fmt.Sprintf("instance/deleted/%d", inst.ID),
	}
	got := env.events.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCascadeSkipsPendingDelete(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	if err := env.db.SetInstanceSyncStatus(ctx, inst.ID, schema.StatusPendingDelete); err != nil {
		t.Fatalf("SetInstanceSyncStatus failed: %v", err)
	}

	c.Time = "08:00"
	if err := env.svc.UpdateCourse(ctx, c); err != nil {
		t.Fatalf("UpdateCourse failed: %v", err)
	}

	// A record awaiting deletion confirmation is left alone: neither its
	// schedule nor its status may change.
	got, err := env.svc.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if got.StartTime != "10:00" {
		t.Errorf("cascade touched a pending-delete instance: start=%s", got.StartTime)
	}
	if got.SyncStatus != schema.StatusPendingDelete {
		t.Errorf("status = %v, want pending_delete", got.SyncStatus)
	}
}

func TestRefreshInstances(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	inst := addInstance(t, env, c.ID)

	// Simulate drift from the course schedule.
	inst.StartTime = "06:00"
	inst.EndTime = "07:00"
	if err := env.db.UpdateInstance(ctx, inst); err != nil {
		t.Fatalf("UpdateInstance failed: %v", err)
	}

	if err := env.svc.RefreshInstances(ctx, c.ID); err != nil {
		t.Fatalf("RefreshInstances failed: %v", err)
	}

	got, err := env.svc.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if got.StartTime != "10:00" || got.EndTime != "11:00" {
		t.Errorf("drift not repaired: start=%s end=%s", got.StartTime, got.EndTime)
	}

	if err := env.svc.RefreshInstances(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing course, got %v", err)
	}
}

func TestCourseQueries(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	addCourse(t, env)
	c2 := &schema.Course{
		Name: "Aerial Yoga", DaysOfWeek: "Tuesday", Time: "18:00",
		Capacity: 12, Duration: 90, Price: 15,
	}
	if _, err := env.svc.AddCourse(ctx, c2); err != nil {
		t.Fatalf("AddCourse failed: %v", err)
	}

	found, err := env.svc.SearchCourses(ctx, "Aerial")
	if err != nil {
		t.Fatalf("SearchCourses failed: %v", err)
	}
	if len(found) != 1 || found[0].Name != "Aerial Yoga" {
		t.Errorf("unexpected search result: %+v", found)
	}

	byDay, err := env.svc.ListCoursesByDay(ctx, "Monday")
	if err != nil {
		t.Fatalf("ListCoursesByDay failed: %v", err)
	}
	if len(byDay) != 1 || byDay[0].Name != "Flow Yoga" {
		t.Errorf("unexpected day listing: %+v", byDay)
	}
}

func TestRecentActivity(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	addInstance(t, env, c.ID)

	records, err := env.svc.RecentActivity(ctx, 10)
	if err != nil {
		t.Fatalf("RecentActivity failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 activity rows, got %d", len(records))
	}
	for _, a := range records {
		if a.Type != schema.ActivityCourse && a.Type != schema.ActivityInstance {
			t.Errorf("unexpected activity type %q", a.Type)
		}
	}
}

func TestMarkAllSynced(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	c := addCourse(t, env)
	addInstance(t, env, c.ID)

	n, err := env.svc.MarkAllSynced(ctx)
	if err != nil {
		t.Fatalf("MarkAllSynced failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 records marked, got %d", n)
	}

	got, err := env.svc.GetCourse(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCourse failed: %v", err)
	}
	if got.SyncStatus != schema.StatusSynced {
		t.Errorf("course status = %v, want synced", got.SyncStatus)
	}
}
