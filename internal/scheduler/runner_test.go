package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketscout/backend/internal/ingestion"
	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/storage/models"
)

type fakeScanner struct {
	observations []scan.RawObservation
	err          error
}

func (f *fakeScanner) Scan(_ context.Context, _, _ string, _ []string) ([]scan.RawObservation, error) {
	return f.observations, f.err
}

type fakeIngestor struct {
	outcomes []ingestion.Outcome
	err      error
}

func (f *fakeIngestor) Ingest(_ context.Context, _ string, raw []scan.RawObservation) ([]ingestion.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.outcomes != nil {
		return f.outcomes, nil
	}
	outcomes := make([]ingestion.Outcome, len(raw))
	for i, obs := range raw {
		outcomes[i] = ingestion.Outcome{Observation: obs, Signal: &models.Signal{ID: obs.Source}}
	}
	return outcomes, nil
}

func TestIsDue(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	assert.True(t, isDue(models.SchedulerTask{CadenceExpression: "hourly"}, now))
	assert.False(t, isDue(models.SchedulerTask{CadenceExpression: "hourly", LastRunAt: &recent}, now))
	assert.True(t, isDue(models.SchedulerTask{CadenceExpression: "hourly", LastRunAt: &stale}, now))
	assert.False(t, isDue(models.SchedulerTask{CadenceExpression: "nonsense", LastRunAt: &stale}, now))
}

func TestExecuteTaskCompletedRun(t *testing.T) {
	svc, store := newTestService(t)
	task := createTask(t, svc, "t1")

	claimed, err := svc.Trigger(context.Background(), "t1", task.ID)
	require.NoError(t, err)

	scanner := &fakeScanner{observations: []scan.RawObservation{
		{Source: "a", Name: "one"},
		{Source: "b", Name: "two"},
	}}
	ingestor := &fakeIngestor{outcomes: []ingestion.Outcome{
		{Signal: &models.Signal{ID: "s1"}},
		{Err: errors.New("store write failed")},
	}}
	runner := NewRunner(svc, store, scanner, ingestor, RunnerConfig{RunTimeout: time.Minute})

	runner.executeTask(context.Background(), *claimed)

	got, err := svc.GetTask(context.Background(), "t1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskScheduled, got.Status)
	assert.Equal(t, 1, got.SuccessCount)
	require.NotNil(t, got.LastRunAt)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, task.ID, run.TaskID)
	assert.Equal(t, 1, run.SignalsFound)
	require.NotNil(t, run.FinishedAt)
}

func TestExecuteTaskScanFailure(t *testing.T) {
	svc, store := newTestService(t)
	task := createTask(t, svc, "t1")

	claimed, err := svc.Trigger(context.Background(), "t1", task.ID)
	require.NoError(t, err)

	scanner := &fakeScanner{err: errors.New("source unreachable")}
	runner := NewRunner(svc, store, scanner, &fakeIngestor{}, RunnerConfig{RunTimeout: time.Minute})

	runner.executeTask(context.Background(), *claimed)

	got, err := svc.GetTask(context.Background(), "t1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskScheduled, got.Status)
	assert.Equal(t, 1, got.FailureCount)

	require.Len(t, store.runs, 1)
	assert.Equal(t, "failed", store.runs[0].Status)
	assert.Contains(t, store.runs[0].Error, "source unreachable")
}

func TestRunManualScanLeavesTasksAlone(t *testing.T) {
	svc, store := newTestService(t)
	task := createTask(t, svc, "t1")

	scanner := &fakeScanner{observations: []scan.RawObservation{
		{Source: "a"}, {Source: "b"}, {Source: "c"},
	}}
	runner := NewRunner(svc, store, scanner, &fakeIngestor{}, RunnerConfig{RunTimeout: time.Minute})

	result, err := runner.RunManualScan(context.Background(), "t1", "competitor", []string{"src-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ScanID)
	assert.Equal(t, 3, result.Observations)
	assert.Equal(t, 3, result.SignalsCreated)

	// Manual scans leave a ScanRun with no task linkage and do not
	// touch task state or counters.
	require.Len(t, store.runs, 1)
	assert.Empty(t, store.runs[0].TaskID)
	assert.Equal(t, "completed", store.runs[0].Status)

	got, err := svc.GetTask(context.Background(), "t1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskScheduled, got.Status)
	assert.Zero(t, got.SuccessCount)
	assert.Nil(t, got.LastRunAt)
}
