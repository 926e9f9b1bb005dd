package models

import "time"

type SignalType string

const (
	SignalCompetitor SignalType = "competitor"
	SignalMarket     SignalType = "market"
	SignalPricing    SignalType = "pricing"
	SignalProduct    SignalType = "product"
	SignalSentiment  SignalType = "sentiment"
)

type Strength string

const (
	StrengthLow    Strength = "low"
	StrengthMedium Strength = "medium"
	StrengthHigh   Strength = "high"
)

// Signal is a scored, persisted observation about market or competitor
// activity. Immutable after creation except for strength revisions.
type Signal struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Type          SignalType `json:"type"`
	Source        string     `json:"source"`
	Content       string     `json:"content"`
	Confidence    float64    `json:"confidence"`
	Strength      Strength   `json:"strength"`
	Freshness     float64    `json:"freshness"`
	EvidenceCount int        `json:"evidence_count"`
	ObservedAt    time.Time  `json:"observed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type DossierStatus string

const (
	DossierDraft     DossierStatus = "draft"
	DossierPublished DossierStatus = "published"
	DossierArchived  DossierStatus = "archived"
)

type Hypothesis struct {
	Statement         string   `json:"statement"`
	Confidence        float64  `json:"confidence"`
	SupportingSignals []string `json:"supporting_signals"`
}

type Experiment struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SuccessMetric string `json:"success_metric"`
	Confidence   float64 `json:"confidence"`
}

// Dossier is a synthesized intelligence report. SignalIDs is a frozen
// snapshot taken at creation time; later signal mutations never alter
// a published dossier.
type Dossier struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenant_id"`
	CampaignID   string        `json:"campaign_id"`
	Title        string        `json:"title"`
	Summary      string        `json:"summary"`
	Hypotheses   []Hypothesis  `json:"hypotheses,omitempty"`
	Experiments  []Experiment  `json:"experiments,omitempty"`
	CopySnippets []string      `json:"copy_snippets"`
	SignalIDs    []string      `json:"signal_ids"`
	Status       DossierStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

type TaskStatus string

const (
	TaskScheduled TaskStatus = "scheduled"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskPaused    TaskStatus = "paused"
)

type SchedulerTask struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	Name              string     `json:"name"`
	ScanType          string     `json:"scan_type"`
	CadenceExpression string     `json:"cadence"`
	SourceIDs         []string   `json:"source_ids"`
	Status            TaskStatus `json:"status"`
	SuccessCount      int        `json:"success_count"`
	FailureCount      int        `json:"failure_count"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	SignalID  string    `json:"signal_id,omitempty"`
	DossierID string    `json:"dossier_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalyticsSnapshot is a point-in-time rollup, immutable once written.
// Duplicates per (tenant, window, date) are tolerated; the table is
// append-only.
type AnalyticsSnapshot struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenant_id"`
	WindowDays        int            `json:"window_days"`
	TotalSignals      int            `json:"total_signals"`
	SignalsByStrength map[string]int `json:"signals_by_strength"`
	SignalsByType     map[string]int `json:"signals_by_type"`
	AvgConfidence     float64        `json:"avg_confidence"`
	AvgFreshness      float64        `json:"avg_freshness"`
	SnapshotDate      time.Time      `json:"snapshot_date"`
}

type CompetitorRecord struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	ThreatLevel float64   `json:"threat_level"`
	SignalCount int       `json:"signal_count"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type MarketRecord struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Segment   string    `json:"segment"`
	Headline  string    `json:"headline"`
	Sentiment float64   `json:"sentiment"`
	Relevance float64   `json:"relevance"`
	CreatedAt time.Time `json:"created_at"`
}

type OpportunityStatus string

const (
	OpportunitySuggested OpportunityStatus = "suggested"
	OpportunityAccepted  OpportunityStatus = "accepted"
	OpportunityDismissed OpportunityStatus = "dismissed"
	OpportunityCompleted OpportunityStatus = "completed"
)

type Opportunity struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	Type            string            `json:"type"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	ConfidenceScore float64           `json:"confidence_score"`
	EstimatedImpact string            `json:"estimated_impact"`
	Status          OpportunityStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ScanRun is the durable record of one scan execution, scheduled or
// manual. Health reporting is computed from recent rows.
type ScanRun struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	TaskID       string     `json:"task_id,omitempty"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	SignalsFound int        `json:"signals_found"`
	LatencyMS    int        `json:"latency_ms"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// SignalFilter selects signals within one tenant. Zero values mean
// "no constraint".
type SignalFilter struct {
	Strength Strength
	Type     SignalType
	Since    time.Time
	Limit    int
}

// StrengthForConfidence maps a verifier confidence to the coarse tier
// persisted on the signal.
func StrengthForConfidence(confidence, highCutoff, medCutoff float64) Strength {
	switch {
	case confidence >= highCutoff:
		return StrengthHigh
	case confidence >= medCutoff:
		return StrengthMedium
	default:
		return StrengthLow
	}
}

// Clamp01 bounds score-like values into [0,1]. Out-of-range inputs are
// clamped, never rejected.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
