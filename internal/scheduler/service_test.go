package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/errs"
)

// memStore mirrors the SQL store's compare-and-swap semantics with a
// mutex, so the race behavior under test matches production.
type memStore struct {
	mu      sync.Mutex
	tasks   map[string]*models.SchedulerTask
	runs    []models.ScanRun
	deleted map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		tasks:   make(map[string]*models.SchedulerTask),
		deleted: make(map[string]bool),
	}
}

func (m *memStore) key(tenantID, id string) string { return tenantID + "/" + id }

func (m *memStore) InsertTask(_ context.Context, t *models.SchedulerTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *t
	m.tasks[m.key(t.TenantID, t.ID)] = &copied
	return nil
}

func (m *memStore) GetTask(_ context.Context, tenantID, id string) (*models.SchedulerTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[m.key(tenantID, id)]
	if !ok {
		return nil, errs.NotFound("task %s not found", id)
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) ListTasks(_ context.Context, tenantID string) ([]models.SchedulerTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SchedulerTask
	for _, t := range m.tasks {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) ListScheduledTasks(_ context.Context) ([]models.SchedulerTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SchedulerTask
	for _, t := range m.tasks {
		if t.Status == models.TaskScheduled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) TransitionTaskStatus(_ context.Context, tenantID, id string, from, to models.TaskStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[m.key(tenantID, id)]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (m *memStore) RecordTaskOutcome(_ context.Context, tenantID, id string, succeeded bool, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[m.key(tenantID, id)]
	if !ok || t.Status != models.TaskRunning {
		return false, nil
	}
	t.Status = models.TaskScheduled
	if succeeded {
		t.SuccessCount++
	} else {
		t.FailureCount++
	}
	t.LastRunAt = &at
	return true, nil
}

func (m *memStore) DeleteTask(_ context.Context, tenantID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(tenantID, id)
	if _, ok := m.tasks[key]; !ok {
		return false, nil
	}
	delete(m.tasks, key)
	m.deleted[key] = true
	return true, nil
}

func (m *memStore) InsertScanRun(_ context.Context, r *models.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *r)
	return nil
}

func (m *memStore) FinishScanRun(_ context.Context, id, status string, signalsFound, latencyMS int, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs[i].Status = status
			m.runs[i].SignalsFound = signalsFound
			m.runs[i].LatencyMS = latencyMS
			m.runs[i].Error = errMsg
			m.runs[i].FinishedAt = &at
		}
	}
	return nil
}

func (m *memStore) ListRecentScanRuns(_ context.Context, tenantID string, limit int) ([]models.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScanRun
	for _, r := range m.runs {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewService(store, Config{HealthWindow: 50, DegradedErrorRate: 0.25}), store
}

func createTask(t *testing.T, svc *Service, tenantID string) *models.SchedulerTask {
	t.Helper()
	task, err := svc.CreateTask(context.Background(), tenantID, "competitor watch", "competitor", "hourly", []string{"src-1"})
	require.NoError(t, err)
	return task
}

func TestCreateTaskValidatesCadence(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTask(context.Background(), "t1", "bad", "competitor", "whenever", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	task := createTask(t, svc, "t1")
	assert.Equal(t, models.TaskScheduled, task.Status)
	assert.Zero(t, task.SuccessCount)
	assert.Nil(t, task.LastRunAt)
}

func TestTriggerExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "t1")

	const racers = 16
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := 0; i < racers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = svc.Trigger(context.Background(), "t1", task.ID)
		}()
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errs.IsKind(err, errs.KindAlreadyRunning):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
}

func TestRecordOutcomeRevertsToScheduled(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "t1")

	_, err := svc.Trigger(context.Background(), "t1", task.ID)
	require.NoError(t, err)

	err = svc.RecordOutcome(context.Background(), "t1", task.ID, models.TaskCompleted, "12 signals")
	require.NoError(t, err)

	got, err := svc.GetTask(context.Background(), "t1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskScheduled, got.Status)
	assert.Equal(t, 1, got.SuccessCount)
	assert.Zero(t, got.FailureCount)
	require.NotNil(t, got.LastRunAt)

	// The task is immediately triggerable again.
	_, err = svc.Trigger(context.Background(), "t1", task.ID)
	require.NoError(t, err)
	err = svc.RecordOutcome(context.Background(), "t1", task.ID, models.TaskFailed, "source unreachable")
	require.NoError(t, err)

	got, err = svc.GetTask(context.Background(), "t1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SuccessCount)
	assert.Equal(t, 1, got.FailureCount)
}

func TestRecordOutcomeRejectsNonRunning(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "t1")

	err := svc.RecordOutcome(context.Background(), "t1", task.ID, models.TaskCompleted, "")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	err = svc.RecordOutcome(context.Background(), "t1", task.ID, models.TaskPaused, "")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestPauseAndResume(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "t1")

	require.NoError(t, svc.Pause(context.Background(), "t1", task.ID))

	_, err := svc.Trigger(context.Background(), "t1", task.ID)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	require.NoError(t, svc.Resume(context.Background(), "t1", task.ID))
	_, err = svc.Trigger(context.Background(), "t1", task.ID)
	require.NoError(t, err)

	// Pausing a running task is allowed.
	require.NoError(t, svc.Pause(context.Background(), "t1", task.ID))
}

func TestDeleteTask(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "t1")

	require.NoError(t, svc.DeleteTask(context.Background(), "t1", task.ID))

	err := svc.DeleteTask(context.Background(), "t1", task.ID)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestHealthDegradedCutoff(t *testing.T) {
	svc, store := newTestService(t)
	now := time.Now().UTC()

	addRun := func(source, status string, latency int) {
		done := now
		store.runs = append(store.runs, models.ScanRun{
			ID: source + status, TenantID: "t1", Source: source,
			Status: status, LatencyMS: latency, StartedAt: now, FinishedAt: &done,
		})
	}

	// steady: 1 failure in 4 runs (25%), at but not over the cutoff.
	addRun("steady", "completed", 100)
	addRun("steady", "completed", 200)
	addRun("steady", "completed", 300)
	addRun("steady", "failed", 400)
	// flaky: 1 failure in 2 runs (50%).
	addRun("flaky", "completed", 100)
	addRun("flaky", "failed", 100)

	report, err := svc.Health(context.Background(), "t1")
	require.NoError(t, err)

	require.Len(t, report.Sources, 2)
	bySource := map[string]SourceHealth{}
	for _, s := range report.Sources {
		bySource[s.Source] = s
	}

	assert.Equal(t, "healthy", bySource["steady"].Status)
	assert.InDelta(t, 0.25, bySource["steady"].ErrorRate, 1e-9)
	assert.InDelta(t, 250, bySource["steady"].AvgLatencyMS, 1e-9)

	assert.Equal(t, "degraded", bySource["flaky"].Status)
	assert.InDelta(t, 0.5, bySource["flaky"].ErrorRate, 1e-9)

	assert.Equal(t, "degraded", report.Overall)
}

func TestHealthEmptyIsHealthy(t *testing.T) {
	svc, _ := newTestService(t)

	report, err := svc.Health(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, report.Sources)
	assert.Equal(t, "healthy", report.Overall)
}
