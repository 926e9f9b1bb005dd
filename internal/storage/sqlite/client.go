package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
)

// Client is the persistence collaborator. Every query is scoped by
// tenant_id, so a caller holding the wrong tenant cannot observe
// another tenant's rows; a cross-tenant lookup resolves to NotFound.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type TEXT NOT NULL,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL NOT NULL,
		strength TEXT NOT NULL,
		freshness REAL NOT NULL,
		evidence_count INTEGER NOT NULL DEFAULT 0,
		observed_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_signals_tenant ON signals(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_signals_tenant_observed ON signals(tenant_id, observed_at);
	CREATE INDEX IF NOT EXISTS idx_signals_tenant_strength ON signals(tenant_id, strength);

	CREATE TABLE IF NOT EXISTS dossiers (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		hypotheses TEXT,
		experiments TEXT,
		copy_snippets TEXT,
		signal_ids TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dossiers_tenant ON dossiers(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_dossiers_campaign ON dossiers(tenant_id, campaign_id);

	CREATE TABLE IF NOT EXISTS scheduler_tasks (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		scan_type TEXT NOT NULL,
		cadence_expression TEXT NOT NULL,
		source_ids TEXT,
		status TEXT NOT NULL,
		success_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		last_run_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_tenant ON scheduler_tasks(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON scheduler_tasks(status);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT,
		signal_id TEXT,
		dossier_id TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(tenant_id, user_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		window_days INTEGER NOT NULL,
		total_signals INTEGER NOT NULL,
		signals_by_strength TEXT,
		signals_by_type TEXT,
		avg_confidence REAL NOT NULL,
		avg_freshness REAL NOT NULL,
		snapshot_date INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_tenant ON analytics_snapshots(tenant_id, snapshot_date);

	CREATE TABLE IF NOT EXISTS competitor_records (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		domain TEXT,
		threat_level REAL NOT NULL DEFAULT 0,
		signal_count INTEGER NOT NULL DEFAULT 0,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_competitors_tenant ON competitor_records(tenant_id);

	CREATE TABLE IF NOT EXISTS market_records (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		segment TEXT NOT NULL,
		headline TEXT,
		sentiment REAL NOT NULL DEFAULT 0,
		relevance REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_market_tenant ON market_records(tenant_id);

	CREATE TABLE IF NOT EXISTS opportunities (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		confidence_score REAL NOT NULL,
		estimated_impact TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_opportunities_tenant ON opportunities(tenant_id, status);

	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		task_id TEXT,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		signals_found INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_scan_runs_tenant ON scan_runs(tenant_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_scan_runs_source ON scan_runs(tenant_id, source);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertSignal(ctx context.Context, s *models.Signal) error {
	query := `
		INSERT INTO signals (id, tenant_id, type, source, content, confidence, strength,
			freshness, evidence_count, observed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		s.ID,
		s.TenantID,
		string(s.Type),
		s.Source,
		s.Content,
		s.Confidence,
		string(s.Strength),
		s.Freshness,
		s.EvidenceCount,
		s.ObservedAt.Unix(),
		s.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert signal", err)
	}

	logger.Debug("Signal inserted", zap.String("signal_id", s.ID), zap.String("tenant_id", s.TenantID))
	return nil
}

const signalColumns = `id, tenant_id, type, source, content, confidence, strength, freshness, evidence_count, observed_at, created_at`

func scanSignal(scanner interface{ Scan(...interface{}) error }) (*models.Signal, error) {
	var s models.Signal
	var sigType, strength string
	var observedAt, createdAt int64

	err := scanner.Scan(
		&s.ID, &s.TenantID, &sigType, &s.Source, &s.Content,
		&s.Confidence, &strength, &s.Freshness, &s.EvidenceCount,
		&observedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	s.Type = models.SignalType(sigType)
	s.Strength = models.Strength(strength)
	s.ObservedAt = time.Unix(observedAt, 0).UTC()
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &s, nil
}

func (c *Client) GetSignal(ctx context.Context, tenantID, id string) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE tenant_id = ? AND id = ?`

	s, err := scanSignal(c.db.QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("signal %s not found", id)
	}
	if err != nil {
		return nil, errs.Store("failed to get signal", err)
	}
	return s, nil
}

// SignalsByIDs resolves ids within one tenant, preserving the order of
// the requested ids. Missing or cross-tenant ids are silently dropped.
func (c *Client) SignalsByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Signal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `SELECT ` + signalColumns + ` FROM signals WHERE tenant_id = ? AND id IN (` + placeholders + `)`
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Store("failed to resolve signals", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Signal, len(ids))
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, errs.Store("failed to scan signal row", err)
		}
		byID[s.ID] = *s
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("failed to iterate signal rows", err)
	}

	ordered := make([]models.Signal, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

// ListSignals returns tenant signals matching the filter, most recently
// observed first.
func (c *Client) ListSignals(ctx context.Context, tenantID string, filter models.SignalFilter) ([]models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE tenant_id = ?`
	args := []interface{}{tenantID}

	if filter.Strength != "" {
		query += ` AND strength = ?`
		args = append(args, string(filter.Strength))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		query += ` AND observed_at >= ?`
		args = append(args, filter.Since.Unix())
	}

	query += ` ORDER BY observed_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Store("failed to list signals", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, errs.Store("failed to scan signal row", err)
		}
		signals = append(signals, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("failed to iterate signal rows", err)
	}
	return signals, nil
}

func (c *Client) InsertDossier(ctx context.Context, d *models.Dossier) error {
	hypotheses, _ := json.Marshal(d.Hypotheses)
	experiments, _ := json.Marshal(d.Experiments)
	snippets, _ := json.Marshal(d.CopySnippets)
	signalIDs, _ := json.Marshal(d.SignalIDs)

	query := `
		INSERT INTO dossiers (id, tenant_id, campaign_id, title, summary, hypotheses,
			experiments, copy_snippets, signal_ids, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		d.ID, d.TenantID, d.CampaignID, d.Title, d.Summary,
		string(hypotheses), string(experiments), string(snippets), string(signalIDs),
		string(d.Status), d.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert dossier", err)
	}

	logger.Info("Dossier stored",
		zap.String("dossier_id", d.ID),
		zap.String("tenant_id", d.TenantID),
		zap.Int("signals", len(d.SignalIDs)),
	)
	return nil
}

func (c *Client) GetDossier(ctx context.Context, tenantID, id string) (*models.Dossier, error) {
	query := `
		SELECT id, tenant_id, campaign_id, title, summary, hypotheses, experiments,
			copy_snippets, signal_ids, status, created_at
		FROM dossiers WHERE tenant_id = ? AND id = ?
	`

	var d models.Dossier
	var hypotheses, experiments, snippets, signalIDs, status string
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.CampaignID, &d.Title, &d.Summary,
		&hypotheses, &experiments, &snippets, &signalIDs, &status, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("dossier %s not found", id)
	}
	if err != nil {
		return nil, errs.Store("failed to get dossier", err)
	}

	json.Unmarshal([]byte(hypotheses), &d.Hypotheses)
	json.Unmarshal([]byte(experiments), &d.Experiments)
	json.Unmarshal([]byte(snippets), &d.CopySnippets)
	json.Unmarshal([]byte(signalIDs), &d.SignalIDs)
	d.Status = models.DossierStatus(status)
	d.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &d, nil
}

func (c *Client) InsertTask(ctx context.Context, t *models.SchedulerTask) error {
	sourceIDs, _ := json.Marshal(t.SourceIDs)

	query := `
		INSERT INTO scheduler_tasks (id, tenant_id, name, scan_type, cadence_expression,
			source_ids, status, success_count, failure_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		t.ID, t.TenantID, t.Name, t.ScanType, t.CadenceExpression,
		string(sourceIDs), string(t.Status), t.SuccessCount, t.FailureCount,
		t.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert task", err)
	}
	return nil
}

const taskColumns = `id, tenant_id, name, scan_type, cadence_expression, source_ids, status, success_count, failure_count, last_run_at, created_at`

func scanTask(scanner interface{ Scan(...interface{}) error }) (*models.SchedulerTask, error) {
	var t models.SchedulerTask
	var sourceIDs, status string
	var lastRunAt sql.NullInt64
	var createdAt int64

	err := scanner.Scan(
		&t.ID, &t.TenantID, &t.Name, &t.ScanType, &t.CadenceExpression,
		&sourceIDs, &status, &t.SuccessCount, &t.FailureCount, &lastRunAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(sourceIDs), &t.SourceIDs)
	t.Status = models.TaskStatus(status)
	if lastRunAt.Valid {
		ts := time.Unix(lastRunAt.Int64, 0).UTC()
		t.LastRunAt = &ts
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

func (c *Client) GetTask(ctx context.Context, tenantID, id string) (*models.SchedulerTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduler_tasks WHERE tenant_id = ? AND id = ?`

	t, err := scanTask(c.db.QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("task %s not found", id)
	}
	if err != nil {
		return nil, errs.Store("failed to get task", err)
	}
	return t, nil
}

func (c *Client) ListTasks(ctx context.Context, tenantID string) ([]models.SchedulerTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduler_tasks WHERE tenant_id = ? ORDER BY created_at`

	rows, err := c.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, errs.Store("failed to list tasks", err)
	}
	defer rows.Close()

	var tasks []models.SchedulerTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errs.Store("failed to scan task row", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListScheduledTasks feeds the worker pool. It crosses tenants by design:
// the runner is system infrastructure, not a caller-facing operation.
func (c *Client) ListScheduledTasks(ctx context.Context) ([]models.SchedulerTask, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduler_tasks WHERE status = ?`

	rows, err := c.db.QueryContext(ctx, query, string(models.TaskScheduled))
	if err != nil {
		return nil, errs.Store("failed to list scheduled tasks", err)
	}
	defer rows.Close()

	var tasks []models.SchedulerTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errs.Store("failed to scan task row", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// TransitionTaskStatus performs an atomic compare-and-swap on a task's
// status. It reports whether the swap happened; a false return with a
// nil error means the task was not in the expected state.
func (c *Client) TransitionTaskStatus(ctx context.Context, tenantID, id string, from, to models.TaskStatus) (bool, error) {
	query := `UPDATE scheduler_tasks SET status = ? WHERE tenant_id = ? AND id = ? AND status = ?`

	res, err := c.db.ExecContext(ctx, query, string(to), tenantID, id, string(from))
	if err != nil {
		return false, errs.Store("failed to transition task status", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errs.Store("failed to read affected rows", err)
	}
	return affected == 1, nil
}

// RecordTaskOutcome resolves a running task to completed or failed,
// bumps the matching counter, stamps last_run_at, and reverts the task
// to scheduled so the next cadence tick can pick it up.
func (c *Client) RecordTaskOutcome(ctx context.Context, tenantID, id string, succeeded bool, at time.Time) (bool, error) {
	counter := "failure_count"
	if succeeded {
		counter = "success_count"
	}

	query := fmt.Sprintf(`
		UPDATE scheduler_tasks
		SET status = ?, %s = %s + 1, last_run_at = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`, counter, counter)

	res, err := c.db.ExecContext(ctx, query,
		string(models.TaskScheduled), at.Unix(), tenantID, id, string(models.TaskRunning))
	if err != nil {
		return false, errs.Store("failed to record task outcome", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errs.Store("failed to read affected rows", err)
	}
	return affected == 1, nil
}

func (c *Client) DeleteTask(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM scheduler_tasks WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return false, errs.Store("failed to delete task", err)
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (c *Client) InsertNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, tenant_id, user_id, type, title, message,
			signal_id, dossier_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	isRead := 0
	if n.IsRead {
		isRead = 1
	}

	_, err := c.db.ExecContext(ctx, query,
		n.ID, n.TenantID, n.UserID, n.Type, n.Title, n.Message,
		n.SignalID, n.DossierID, isRead, n.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert notification", err)
	}
	return nil
}

func (c *Client) GetNotification(ctx context.Context, tenantID, id string) (*models.Notification, error) {
	query := `
		SELECT id, tenant_id, user_id, type, title, message, signal_id, dossier_id, is_read, created_at
		FROM notifications WHERE tenant_id = ? AND id = ?
	`

	var n models.Notification
	var isRead int
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, tenantID, id).Scan(
		&n.ID, &n.TenantID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.SignalID, &n.DossierID, &isRead, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("notification %s not found", id)
	}
	if err != nil {
		return nil, errs.Store("failed to get notification", err)
	}

	n.IsRead = isRead == 1
	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &n, nil
}

func (c *Client) ListNotifications(ctx context.Context, tenantID, userID string, since time.Time) ([]models.Notification, error) {
	query := `
		SELECT id, tenant_id, user_id, type, title, message, signal_id, dossier_id, is_read, created_at
		FROM notifications
		WHERE tenant_id = ? AND user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID, userID, since.Unix())
	if err != nil {
		return nil, errs.Store("failed to list notifications", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var isRead int
		var createdAt int64

		err := rows.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.SignalID, &n.DossierID, &isRead, &createdAt)
		if err != nil {
			return nil, errs.Store("failed to scan notification row", err)
		}

		n.IsRead = isRead == 1
		n.CreatedAt = time.Unix(createdAt, 0).UTC()
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead is idempotent; marking an already-read
// notification affects zero rows and is not an error.
func (c *Client) MarkNotificationRead(ctx context.Context, tenantID, id string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return errs.Store("failed to mark notification read", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errs.Store("failed to read affected rows", err)
	}
	if affected == 0 {
		// Distinguish "already read" from "absent or cross-tenant".
		if _, err := c.GetNotification(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, tenantID, userID string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE tenant_id = ? AND user_id = ? AND is_read = 0`,
		tenantID, userID)
	if err != nil {
		return 0, errs.Store("failed to mark notifications read", err)
	}
	return res.RowsAffected()
}

func (c *Client) InsertSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error {
	byStrength, _ := json.Marshal(s.SignalsByStrength)
	byType, _ := json.Marshal(s.SignalsByType)

	query := `
		INSERT INTO analytics_snapshots (id, tenant_id, window_days, total_signals,
			signals_by_strength, signals_by_type, avg_confidence, avg_freshness, snapshot_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		s.ID, s.TenantID, s.WindowDays, s.TotalSignals,
		string(byStrength), string(byType), s.AvgConfidence, s.AvgFreshness,
		s.SnapshotDate.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert snapshot", err)
	}
	return nil
}

func (c *Client) InsertCompetitorRecord(ctx context.Context, r *models.CompetitorRecord) error {
	query := `
		INSERT INTO competitor_records (id, tenant_id, name, domain, threat_level,
			signal_count, last_seen_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			threat_level = excluded.threat_level,
			signal_count = excluded.signal_count,
			last_seen_at = excluded.last_seen_at
	`

	_, err := c.db.ExecContext(ctx, query,
		r.ID, r.TenantID, r.Name, r.Domain, r.ThreatLevel,
		r.SignalCount, r.LastSeenAt.Unix(), r.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert competitor record", err)
	}
	return nil
}

func (c *Client) ListCompetitorRecords(ctx context.Context, tenantID string) ([]models.CompetitorRecord, error) {
	query := `
		SELECT id, tenant_id, name, domain, threat_level, signal_count, last_seen_at, created_at
		FROM competitor_records WHERE tenant_id = ? ORDER BY threat_level DESC
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, errs.Store("failed to list competitor records", err)
	}
	defer rows.Close()

	var records []models.CompetitorRecord
	for rows.Next() {
		var r models.CompetitorRecord
		var lastSeen, createdAt int64

		err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Domain, &r.ThreatLevel,
			&r.SignalCount, &lastSeen, &createdAt)
		if err != nil {
			return nil, errs.Store("failed to scan competitor row", err)
		}

		r.LastSeenAt = time.Unix(lastSeen, 0).UTC()
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (c *Client) InsertMarketRecord(ctx context.Context, r *models.MarketRecord) error {
	query := `
		INSERT INTO market_records (id, tenant_id, segment, headline, sentiment, relevance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		r.ID, r.TenantID, r.Segment, r.Headline, r.Sentiment, r.Relevance, r.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert market record", err)
	}
	return nil
}

func (c *Client) ListMarketRecords(ctx context.Context, tenantID string) ([]models.MarketRecord, error) {
	query := `
		SELECT id, tenant_id, segment, headline, sentiment, relevance, created_at
		FROM market_records WHERE tenant_id = ? ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, errs.Store("failed to list market records", err)
	}
	defer rows.Close()

	var records []models.MarketRecord
	for rows.Next() {
		var r models.MarketRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.TenantID, &r.Segment, &r.Headline,
			&r.Sentiment, &r.Relevance, &createdAt)
		if err != nil {
			return nil, errs.Store("failed to scan market row", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (c *Client) InsertOpportunity(ctx context.Context, o *models.Opportunity) error {
	query := `
		INSERT INTO opportunities (id, tenant_id, type, title, description,
			confidence_score, estimated_impact, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		o.ID, o.TenantID, o.Type, o.Title, o.Description,
		o.ConfidenceScore, o.EstimatedImpact, string(o.Status), o.CreatedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert opportunity", err)
	}
	return nil
}

// ListOpportunitiesByStatus returns opportunities in any of the given
// statuses, highest confidence first.
func (c *Client) ListOpportunitiesByStatus(ctx context.Context, tenantID string, statuses []models.OpportunityStatus, limit int) ([]models.Opportunity, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(statuses)+2)
	args = append(args, tenantID)
	for _, s := range statuses {
		args = append(args, string(s))
	}

	query := `
		SELECT id, tenant_id, type, title, description, confidence_score, estimated_impact, status, created_at
		FROM opportunities
		WHERE tenant_id = ? AND status IN (` + placeholders + `)
		ORDER BY confidence_score DESC
	`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Store("failed to list opportunities", err)
	}
	defer rows.Close()

	var opportunities []models.Opportunity
	for rows.Next() {
		var o models.Opportunity
		var status string
		var createdAt int64

		err := rows.Scan(&o.ID, &o.TenantID, &o.Type, &o.Title, &o.Description,
			&o.ConfidenceScore, &o.EstimatedImpact, &status, &createdAt)
		if err != nil {
			return nil, errs.Store("failed to scan opportunity row", err)
		}

		o.Status = models.OpportunityStatus(status)
		o.CreatedAt = time.Unix(createdAt, 0).UTC()
		opportunities = append(opportunities, o)
	}
	return opportunities, rows.Err()
}

func (c *Client) InsertScanRun(ctx context.Context, r *models.ScanRun) error {
	query := `
		INSERT INTO scan_runs (id, tenant_id, task_id, source, status, signals_found,
			latency_ms, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		r.ID, r.TenantID, r.TaskID, r.Source, r.Status,
		r.SignalsFound, r.LatencyMS, r.Error, r.StartedAt.Unix(),
	)
	if err != nil {
		return errs.Store("failed to insert scan run", err)
	}
	return nil
}

func (c *Client) FinishScanRun(ctx context.Context, id, status string, signalsFound, latencyMS int, errMsg string, at time.Time) error {
	query := `
		UPDATE scan_runs SET status = ?, signals_found = ?, latency_ms = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	_, err := c.db.ExecContext(ctx, query, status, signalsFound, latencyMS, errMsg, at.Unix(), id)
	if err != nil {
		return errs.Store("failed to finish scan run", err)
	}
	return nil
}

func (c *Client) ListRecentScanRuns(ctx context.Context, tenantID string, limit int) ([]models.ScanRun, error) {
	query := `
		SELECT id, tenant_id, task_id, source, status, signals_found, latency_ms, error, started_at, finished_at
		FROM scan_runs WHERE tenant_id = ?
		ORDER BY started_at DESC LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, errs.Store("failed to list scan runs", err)
	}
	defer rows.Close()

	var runs []models.ScanRun
	for rows.Next() {
		var r models.ScanRun
		var startedAt int64
		var finishedAt sql.NullInt64

		err := rows.Scan(&r.ID, &r.TenantID, &r.TaskID, &r.Source, &r.Status,
			&r.SignalsFound, &r.LatencyMS, &r.Error, &startedAt, &finishedAt)
		if err != nil {
			return nil, errs.Store("failed to scan run row", err)
		}

		r.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			ts := time.Unix(finishedAt.Int64, 0).UTC()
			r.FinishedAt = &ts
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
