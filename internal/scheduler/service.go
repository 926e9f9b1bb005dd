package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketscout/backend/internal/metrics"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
)

type Store interface {
	InsertTask(ctx context.Context, t *models.SchedulerTask) error
	GetTask(ctx context.Context, tenantID, id string) (*models.SchedulerTask, error)
	ListTasks(ctx context.Context, tenantID string) ([]models.SchedulerTask, error)
	ListScheduledTasks(ctx context.Context) ([]models.SchedulerTask, error)
	TransitionTaskStatus(ctx context.Context, tenantID, id string, from, to models.TaskStatus) (bool, error)
	RecordTaskOutcome(ctx context.Context, tenantID, id string, succeeded bool, at time.Time) (bool, error)
	DeleteTask(ctx context.Context, tenantID, id string) (bool, error)
	InsertScanRun(ctx context.Context, r *models.ScanRun) error
	FinishScanRun(ctx context.Context, id, status string, signalsFound, latencyMS int, errMsg string, at time.Time) error
	ListRecentScanRuns(ctx context.Context, tenantID string, limit int) ([]models.ScanRun, error)
}

type SourceHealth struct {
	Source       string  `json:"source"`
	Runs         int     `json:"runs"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	Status       string  `json:"status"`
}

type HealthReport struct {
	Sources []SourceHealth `json:"sources"`
	Overall string         `json:"overall"`
}

type Config struct {
	HealthWindow      int
	DegradedErrorRate float64
}

// Service owns the task state machine:
// scheduled -> running -> {completed, failed} -> scheduled (auto-revert),
// scheduled|running -> paused (manual), any -> deleted. The terminal
// per-run states live on the ScanRun row; the task row itself swings
// back to scheduled when the outcome is recorded.
type Service struct {
	store Store
	cfg   Config
}

func NewService(store Store, cfg Config) *Service {
	if cfg.HealthWindow <= 0 {
		cfg.HealthWindow = 50
	}
	if cfg.DegradedErrorRate <= 0 {
		cfg.DegradedErrorRate = 0.25
	}
	return &Service{store: store, cfg: cfg}
}

func (s *Service) CreateTask(ctx context.Context, tenantID, name, scanType, cadence string, sourceIDs []string) (*models.SchedulerTask, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validation("task name is required")
	}
	if _, err := ParseCadence(cadence); err != nil {
		return nil, err
	}

	task := &models.SchedulerTask{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		Name:              name,
		ScanType:          scanType,
		CadenceExpression: cadence,
		SourceIDs:         sourceIDs,
		Status:            models.TaskScheduled,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	logger.Info("Scheduler task created",
		zap.String("tenant_id", tenantID),
		zap.String("task_id", task.ID),
		zap.String("cadence", cadence),
	)
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, tenantID, id string) (*models.SchedulerTask, error) {
	return s.store.GetTask(ctx, tenantID, id)
}

func (s *Service) ListTasks(ctx context.Context, tenantID string) ([]models.SchedulerTask, error) {
	return s.store.ListTasks(ctx, tenantID)
}

// Trigger atomically moves a scheduled task to running. Two concurrent
// triggers race on the store's compare-and-swap; exactly one wins and
// the loser gets AlreadyRunningError.
func (s *Service) Trigger(ctx context.Context, tenantID, id string) (*models.SchedulerTask, error) {
	swapped, err := s.store.TransitionTaskStatus(ctx, tenantID, id, models.TaskScheduled, models.TaskRunning)
	if err != nil {
		return nil, err
	}

	if !swapped {
		task, err := s.store.GetTask(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if task.Status == models.TaskRunning {
			metrics.TaskTransitionConflicts.Inc()
			return nil, errs.AlreadyRunning("task %s is already running", id)
		}
		return nil, errs.Validation("task %s is %s and cannot be triggered", id, task.Status)
	}

	metrics.ScansTriggered.WithLabelValues("scheduled").Inc()
	return s.store.GetTask(ctx, tenantID, id)
}

// RecordOutcome resolves a running task. The matching counter is
// bumped, last_run_at is stamped, and the task reverts to scheduled
// in the same swap. Conflicts are reported, never retried here.
func (s *Service) RecordOutcome(ctx context.Context, tenantID, id string, status models.TaskStatus, summary string) error {
	if status != models.TaskCompleted && status != models.TaskFailed {
		return errs.Validation("outcome status must be completed or failed, got %s", status)
	}

	swapped, err := s.store.RecordTaskOutcome(ctx, tenantID, id, status == models.TaskCompleted, time.Now().UTC())
	if err != nil {
		return err
	}
	if !swapped {
		task, err := s.store.GetTask(ctx, tenantID, id)
		if err != nil {
			return err
		}
		return errs.Validation("task %s is %s, outcome can only be recorded for a running task", id, task.Status)
	}

	logger.Info("Task outcome recorded",
		zap.String("tenant_id", tenantID),
		zap.String("task_id", id),
		zap.String("status", string(status)),
		zap.String("summary", summary),
	)
	return nil
}

// Pause stops future triggers. Valid from scheduled or running; a
// paused running task keeps its in-flight scan, which resolves via
// the ScanRun record only.
func (s *Service) Pause(ctx context.Context, tenantID, id string) error {
	for _, from := range []models.TaskStatus{models.TaskScheduled, models.TaskRunning} {
		swapped, err := s.store.TransitionTaskStatus(ctx, tenantID, id, from, models.TaskPaused)
		if err != nil {
			return err
		}
		if swapped {
			logger.Info("Task paused", zap.String("tenant_id", tenantID), zap.String("task_id", id))
			return nil
		}
	}

	task, err := s.store.GetTask(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return errs.Validation("task %s is %s and cannot be paused", id, task.Status)
}

func (s *Service) Resume(ctx context.Context, tenantID, id string) error {
	swapped, err := s.store.TransitionTaskStatus(ctx, tenantID, id, models.TaskPaused, models.TaskScheduled)
	if err != nil {
		return err
	}
	if !swapped {
		task, err := s.store.GetTask(ctx, tenantID, id)
		if err != nil {
			return err
		}
		return errs.Validation("task %s is %s and cannot be resumed", id, task.Status)
	}
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, tenantID, id string) error {
	deleted, err := s.store.DeleteTask(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return errs.NotFound("task %s not found", id)
	}

	logger.Info("Task deleted", zap.String("tenant_id", tenantID), zap.String("task_id", id))
	return nil
}

// Health classifies each scan source over the recent run window.
// A source is degraded when its error rate exceeds the cutoff.
func (s *Service) Health(ctx context.Context, tenantID string) (*HealthReport, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}

	runs, err := s.store.ListRecentScanRuns(ctx, tenantID, s.cfg.HealthWindow)
	if err != nil {
		return nil, err
	}

	type agg struct {
		runs    int
		errors  int
		latency int
	}
	bySource := make(map[string]*agg)
	order := []string{}

	for _, run := range runs {
		a, ok := bySource[run.Source]
		if !ok {
			a = &agg{}
			bySource[run.Source] = a
			order = append(order, run.Source)
		}
		a.runs++
		a.latency += run.LatencyMS
		if run.Status == "failed" {
			a.errors++
		}
	}

	report := &HealthReport{Overall: "healthy"}
	for _, source := range order {
		a := bySource[source]
		errorRate := float64(a.errors) / float64(a.runs)

		status := "healthy"
		if errorRate > s.cfg.DegradedErrorRate {
			status = "degraded"
			report.Overall = "degraded"
		}

		report.Sources = append(report.Sources, SourceHealth{
			Source:       source,
			Runs:         a.runs,
			ErrorRate:    errorRate,
			AvgLatencyMS: float64(a.latency) / float64(a.runs),
			Status:       status,
		})
	}

	return report, nil
}
