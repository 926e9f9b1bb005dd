package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketscout/backend/internal/metrics"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
	"github.com/marketscout/backend/pkg/utils"
)

type Store interface {
	ListSignals(ctx context.Context, tenantID string, filter models.SignalFilter) ([]models.Signal, error)
	ListCompetitorRecords(ctx context.Context, tenantID string) ([]models.CompetitorRecord, error)
	ListMarketRecords(ctx context.Context, tenantID string) ([]models.MarketRecord, error)
	ListOpportunitiesByStatus(ctx context.Context, tenantID string, statuses []models.OpportunityStatus, limit int) ([]models.Opportunity, error)
	InsertSnapshot(ctx context.Context, s *models.AnalyticsSnapshot) error
}

// Cache is satisfied by the redis client. Nil is fine; every view
// works without it.
type Cache interface {
	GetJSON(ctx context.Context, key string, value interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type TrendPoint struct {
	Date       string         `json:"date"`
	ByStrength map[string]int `json:"by_strength"`
	Total      int            `json:"total"`
}

type TrendReport struct {
	WindowDays   int          `json:"window_days"`
	Points       []TrendPoint `json:"points"`
	Direction    string       `json:"direction"`
	TotalSignals int          `json:"total_signals"`
}

type MarketSummary struct {
	CompetitorCount int     `json:"competitor_count"`
	AvgThreatLevel  float64 `json:"avg_threat_level"`
	MarketCount     int     `json:"market_count"`
	AvgSentiment    float64 `json:"avg_sentiment"`
	AvgRelevance    float64 `json:"avg_relevance"`
}

type MarketOverview struct {
	Competitors []models.CompetitorRecord `json:"competitors"`
	Market      []models.MarketRecord     `json:"market"`
	Summary     MarketSummary             `json:"summary"`
}

type OpportunityRanking struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	ByType        map[string]int       `json:"by_type"`
	ByImpact      map[string]int       `json:"by_impact"`
	AvgConfidence float64              `json:"avg_confidence"`
}

type Engine struct {
	store            Store
	cache            Cache
	opportunityLimit int
	cacheTTL         time.Duration
}

func NewEngine(store Store, cache Cache, opportunityLimit int, cacheTTL time.Duration) *Engine {
	if opportunityLimit <= 0 {
		opportunityLimit = 20
	}
	return &Engine{
		store:            store,
		cache:            cache,
		opportunityLimit: opportunityLimit,
		cacheTTL:         cacheTTL,
	}
}

// Trend groups the tenant's signals by calendar day and strength over
// the trailing window. Days with zero signals are omitted, keeping
// the series sparse. Direction is up only when the last day's total
// exceeds the first day's; ties resolve to down.
func (e *Engine) Trend(ctx context.Context, tenantID string, windowDays int) (*TrendReport, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}
	if windowDays <= 0 {
		windowDays = 30
	}

	cacheKey := fmt.Sprintf("trend:%s", utils.HashString(fmt.Sprintf("%s:%d", tenantID, windowDays)))
	if e.cache != nil {
		var cached TrendReport
		hit, err := e.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Trend cache read failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("trend").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("trend").Inc()
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	signals, err := e.store.ListSignals(ctx, tenantID, models.SignalFilter{Since: since})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*TrendPoint)
	for _, sig := range signals {
		day := sig.ObservedAt.UTC().Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &TrendPoint{Date: day, ByStrength: make(map[string]int)}
			byDay[day] = point
		}
		point.ByStrength[string(sig.Strength)]++
		point.Total++
	}

	points := make([]TrendPoint, 0, len(byDay))
	for _, point := range byDay {
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	direction := "down"
	if len(points) > 0 && points[len(points)-1].Total > points[0].Total {
		direction = "up"
	}

	report := &TrendReport{
		WindowDays:   windowDays,
		Points:       points,
		Direction:    direction,
		TotalSignals: len(signals),
	}

	if e.cache != nil {
		if err := e.cache.SetJSON(ctx, cacheKey, report, e.cacheTTL); err != nil {
			logger.Warn("Trend cache write failed", zap.Error(err))
		}
	}

	return report, nil
}

// Overview is a flat read of the competitor and market intelligence
// tables. Averages over empty sets floor the denominator at 1 and
// come out as zero.
func (e *Engine) Overview(ctx context.Context, tenantID string) (*MarketOverview, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}

	competitors, err := e.store.ListCompetitorRecords(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	market, err := e.store.ListMarketRecords(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var totalThreat, totalSentiment, totalRelevance float64
	for _, c := range competitors {
		totalThreat += c.ThreatLevel
	}
	for _, m := range market {
		totalSentiment += m.Sentiment
		totalRelevance += m.Relevance
	}

	return &MarketOverview{
		Competitors: competitors,
		Market:      market,
		Summary: MarketSummary{
			CompetitorCount: len(competitors),
			AvgThreatLevel:  totalThreat / float64(max(len(competitors), 1)),
			MarketCount:     len(market),
			AvgSentiment:    totalSentiment / float64(max(len(market), 1)),
			AvgRelevance:    totalRelevance / float64(max(len(market), 1)),
		},
	}, nil
}

// RankOpportunities returns actionable opportunities (suggested or
// accepted), highest confidence first, capped, with grouped counts as
// a side artifact.
func (e *Engine) RankOpportunities(ctx context.Context, tenantID string) (*OpportunityRanking, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}

	opportunities, err := e.store.ListOpportunitiesByStatus(ctx, tenantID,
		[]models.OpportunityStatus{models.OpportunitySuggested, models.OpportunityAccepted},
		e.opportunityLimit)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int)
	byImpact := make(map[string]int)
	var totalConfidence float64

	for _, o := range opportunities {
		byType[o.Type]++
		byImpact[o.EstimatedImpact]++
		totalConfidence += o.ConfidenceScore
	}

	return &OpportunityRanking{
		Opportunities: opportunities,
		ByType:        byType,
		ByImpact:      byImpact,
		AvgConfidence: totalConfidence / float64(max(len(opportunities), 1)),
	}, nil
}

// Snapshot materializes an immutable point-in-time rollup of the
// trailing window. The table is append-only; duplicate (tenant,
// window, date) rows are tolerated.
func (e *Engine) Snapshot(ctx context.Context, tenantID string, windowDays int) (*models.AnalyticsSnapshot, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}
	if windowDays <= 0 {
		windowDays = 30
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	signals, err := e.store.ListSignals(ctx, tenantID, models.SignalFilter{Since: since})
	if err != nil {
		return nil, err
	}

	byStrength := make(map[string]int)
	byType := make(map[string]int)
	var totalConfidence, totalFreshness float64

	for _, sig := range signals {
		byStrength[string(sig.Strength)]++
		byType[string(sig.Type)]++
		totalConfidence += sig.Confidence
		totalFreshness += sig.Freshness
	}

	snapshot := &models.AnalyticsSnapshot{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		WindowDays:        windowDays,
		TotalSignals:      len(signals),
		SignalsByStrength: byStrength,
		SignalsByType:     byType,
		AvgConfidence:     totalConfidence / float64(max(len(signals), 1)),
		AvgFreshness:      totalFreshness / float64(max(len(signals), 1)),
		SnapshotDate:      time.Now().UTC(),
	}

	if err := e.store.InsertSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	logger.Info("Analytics snapshot written",
		zap.String("tenant_id", tenantID),
		zap.Int("window_days", windowDays),
		zap.Int("total_signals", snapshot.TotalSignals),
	)
	return snapshot, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
