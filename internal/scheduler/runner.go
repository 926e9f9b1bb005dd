package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketscout/backend/internal/ingestion"
	"github.com/marketscout/backend/internal/metrics"
	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/logger"
)

type Scanner interface {
	Scan(ctx context.Context, tenantID, scanType string, sourceIDs []string) ([]scan.RawObservation, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, tenantID string, raw []scan.RawObservation) ([]ingestion.Outcome, error)
}

type RunnerConfig struct {
	Workers      int
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// Runner is the durable task queue plus worker pool. The store's task
// table is the queue: workers claim due tasks through the service's
// compare-and-swap trigger, so a restart never loses or double-runs
// in-flight work, and two runner instances cannot claim the same task.
type Runner struct {
	svc      *Service
	store    Store
	scanner  Scanner
	ingestor Ingestor
	cfg      RunnerConfig
	queue    chan models.SchedulerTask
}

func NewRunner(svc *Service, store Store, scanner Scanner, ingestor Ingestor, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Runner{
		svc:      svc,
		store:    store,
		scanner:  scanner,
		ingestor: ingestor,
		cfg:      cfg,
		queue:    make(chan models.SchedulerTask, cfg.Workers*2),
	}
}

// Start blocks until ctx is cancelled, running the poll loop and the
// worker pool.
func (r *Runner) Start(ctx context.Context) error {
	logger.Info("Scheduler runner starting",
		zap.Int("workers", r.cfg.Workers),
		zap.Duration("poll_interval", r.cfg.PollInterval),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pollLoop(gctx)
	})

	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			return r.worker(gctx)
		})
	}

	return g.Wait()
}

func (r *Runner) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.enqueueDue(ctx)
		}
	}
}

func (r *Runner) enqueueDue(ctx context.Context) {
	tasks, err := r.store.ListScheduledTasks(ctx)
	if err != nil {
		logger.Error("Failed to list scheduled tasks", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, task := range tasks {
		if !isDue(task, now) {
			continue
		}

		claimed, err := r.svc.Trigger(ctx, task.TenantID, task.ID)
		if err != nil {
			// Lost the claim race or the task moved; either way
			// another actor owns this run.
			logger.Debug("Task not claimed",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}

		select {
		case r.queue <- *claimed:
		case <-ctx.Done():
			return
		}
	}
}

func isDue(task models.SchedulerTask, now time.Time) bool {
	if task.LastRunAt == nil {
		return true
	}

	cadence, err := ParseCadence(task.CadenceExpression)
	if err != nil {
		logger.Warn("Task has unparseable cadence, skipping",
			zap.String("task_id", task.ID),
			zap.String("cadence", task.CadenceExpression),
		)
		return false
	}
	return now.Sub(*task.LastRunAt) >= cadence
}

func (r *Runner) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-r.queue:
			r.executeTask(ctx, task)
		}
	}
}

// executeTask runs the scan-verify-ingest pipeline for one claimed
// task. Signals ingested before a deadline overrun stay valid;
// ingestion commits each item individually and nothing rolls back.
func (r *Runner) executeTask(ctx context.Context, task models.SchedulerTask) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	runID := uuid.NewString()
	started := time.Now().UTC()

	run := &models.ScanRun{
		ID:       runID,
		TenantID: task.TenantID,
		TaskID:   task.ID,
		Source:   task.ScanType,
		Status:   "running",
		StartedAt: started,
	}
	if err := r.store.InsertScanRun(ctx, run); err != nil {
		logger.Error("Failed to record scan run", zap.Error(err))
	}

	created, err := r.runPipeline(runCtx, task.TenantID, task.ScanType, task.SourceIDs)
	latency := int(time.Since(started).Milliseconds())
	finished := time.Now().UTC()

	if err != nil {
		errMsg := err.Error()
		if runCtx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("scan exceeded %s deadline: %v", r.cfg.RunTimeout, err)
		}

		r.store.FinishScanRun(ctx, runID, "failed", created, latency, errMsg, finished)
		if oerr := r.svc.RecordOutcome(ctx, task.TenantID, task.ID, models.TaskFailed, errMsg); oerr != nil {
			logger.Error("Failed to record task outcome", zap.Error(oerr))
		}
		metrics.ScanDuration.WithLabelValues("failed").Observe(time.Since(started).Seconds())

		logger.Warn("Scheduled scan failed",
			zap.String("tenant_id", task.TenantID),
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return
	}

	r.store.FinishScanRun(ctx, runID, "completed", created, latency, "", finished)
	summary := fmt.Sprintf("%d signals created", created)
	if oerr := r.svc.RecordOutcome(ctx, task.TenantID, task.ID, models.TaskCompleted, summary); oerr != nil {
		logger.Error("Failed to record task outcome", zap.Error(oerr))
	}
	metrics.ScanDuration.WithLabelValues("completed").Observe(time.Since(started).Seconds())

	logger.Info("Scheduled scan completed",
		zap.String("tenant_id", task.TenantID),
		zap.String("task_id", task.ID),
		zap.Int("signals_created", created),
	)
}

func (r *Runner) runPipeline(ctx context.Context, tenantID, scanType string, sourceIDs []string) (int, error) {
	observations, err := r.scanner.Scan(ctx, tenantID, scanType, sourceIDs)
	if err != nil {
		return 0, err
	}

	outcomes, err := r.ingestor.Ingest(ctx, tenantID, observations)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, o := range outcomes {
		if o.Err == nil {
			created++
		}
	}
	return created, nil
}

type ManualScanResult struct {
	ScanID         string `json:"scan_id"`
	SignalsCreated int    `json:"signals_created"`
	Observations   int    `json:"observations"`
}

// RunManualScan executes a one-off scan tracked only by a transient
// scan id. It never touches the task table.
func (r *Runner) RunManualScan(ctx context.Context, tenantID, scanType string, sourceIDs []string) (*ManualScanResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()

	scanID := uuid.NewString()
	started := time.Now().UTC()
	metrics.ScansTriggered.WithLabelValues("manual").Inc()

	run := &models.ScanRun{
		ID:        scanID,
		TenantID:  tenantID,
		Source:    scanType,
		Status:    "running",
		StartedAt: started,
	}
	if err := r.store.InsertScanRun(ctx, run); err != nil {
		logger.Error("Failed to record manual scan run", zap.Error(err))
	}

	observations, err := r.scanner.Scan(runCtx, tenantID, scanType, sourceIDs)
	if err != nil {
		latency := int(time.Since(started).Milliseconds())
		r.store.FinishScanRun(ctx, scanID, "failed", 0, latency, err.Error(), time.Now().UTC())
		return nil, err
	}

	outcomes, err := r.ingestor.Ingest(runCtx, tenantID, observations)
	if err != nil {
		latency := int(time.Since(started).Milliseconds())
		r.store.FinishScanRun(ctx, scanID, "failed", 0, latency, err.Error(), time.Now().UTC())
		return nil, err
	}

	created := 0
	for _, o := range outcomes {
		if o.Err == nil {
			created++
		}
	}

	latency := int(time.Since(started).Milliseconds())
	r.store.FinishScanRun(ctx, scanID, "completed", created, latency, "", time.Now().UTC())

	return &ManualScanResult{
		ScanID:         scanID,
		SignalsCreated: created,
		Observations:   len(observations),
	}, nil
}
