package dossier

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
)

type Store interface {
	SignalsByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Signal, error)
	ListSignals(ctx context.Context, tenantID string, filter models.SignalFilter) ([]models.Signal, error)
	InsertDossier(ctx context.Context, d *models.Dossier) error
}

// Request selects the signal snapshot and output sections for one
// synthesis call. Explicit SignalIDs win over Filter.
type Request struct {
	SignalIDs          []string
	Filter             *models.SignalFilter
	IncludeHypotheses  bool
	IncludeExperiments bool
}

type Synthesizer struct {
	store     Store
	rules     []Rule
	signalCap int
}

func NewSynthesizer(store Store, rules []Rule, signalCap int) *Synthesizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	if signalCap <= 0 {
		signalCap = 20
	}
	return &Synthesizer{
		store:     store,
		rules:     rules,
		signalCap: signalCap,
	}
}

// Synthesize builds a dossier from a snapshot of the tenant's signals.
// Ids not owned by the tenant are silently dropped; an empty resolved
// set is a NotFound failure because a dossier needs at least one
// signal. Output is deterministic for a fixed signal set and order.
func (s *Synthesizer) Synthesize(ctx context.Context, tenantID, campaignID string, req Request) (*models.Dossier, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, errs.Validation("campaign id is required")
	}

	signals, err := s.resolveSignals(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, errs.NotFound("no signals available for synthesis")
	}

	signalIDs := make([]string, 0, len(signals))
	for _, sig := range signals {
		signalIDs = append(signalIDs, sig.ID)
	}

	d := &models.Dossier{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		CampaignID:   campaignID,
		Title:        fmt.Sprintf("Intelligence dossier for campaign %s", campaignID),
		Summary:      buildSummary(signals),
		CopySnippets: buildCopySnippets(signals),
		SignalIDs:    signalIDs,
		Status:       models.DossierDraft,
		CreatedAt:    time.Now().UTC(),
	}

	if req.IncludeHypotheses {
		d.Hypotheses = s.generateHypotheses(signals)
	}
	if req.IncludeExperiments {
		d.Experiments = s.generateExperiments(signals)
	}

	if err := s.store.InsertDossier(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("Dossier synthesized",
		zap.String("tenant_id", tenantID),
		zap.String("campaign_id", campaignID),
		zap.String("dossier_id", d.ID),
		zap.Int("signals", len(signalIDs)),
		zap.Int("hypotheses", len(d.Hypotheses)),
	)
	metrics.DossiersSynthesized.Inc()

	return d, nil
}

func (s *Synthesizer) resolveSignals(ctx context.Context, tenantID string, req Request) ([]models.Signal, error) {
	if len(req.SignalIDs) > 0 {
		return s.store.SignalsByIDs(ctx, tenantID, req.SignalIDs)
	}

	filter := models.SignalFilter{Strength: models.StrengthHigh}
	if req.Filter != nil {
		filter = *req.Filter
	}
	if filter.Limit <= 0 || filter.Limit > s.signalCap {
		filter.Limit = s.signalCap
	}
	return s.store.ListSignals(ctx, tenantID, filter)
}

// generateHypotheses walks the rule table in definition order. A rule
// fires once, carrying every signal whose content matched its bucket.
func (s *Synthesizer) generateHypotheses(signals []models.Signal) []models.Hypothesis {
	var hypotheses []models.Hypothesis

	for _, rule := range s.rules {
		var supporting []string
		for _, sig := range signals {
			lower := strings.ToLower(sig.Content)
			if rule.matches(lower, tokenize(sig.Content)) {
				supporting = append(supporting, sig.ID)
			}
		}
		if len(supporting) == 0 {
			continue
		}

		hypotheses = append(hypotheses, models.Hypothesis{
			Statement:         fmt.Sprintf("%s (%d supporting signals)", rule.HypothesisTemplate, len(supporting)),
			Confidence:        rule.Confidence,
			SupportingSignals: supporting,
		})
	}
	return hypotheses
}

func (s *Synthesizer) generateExperiments(signals []models.Signal) []models.Experiment {
	var experiments []models.Experiment

	for _, rule := range s.rules {
		matched := false
		for _, sig := range signals {
			lower := strings.ToLower(sig.Content)
			if rule.matches(lower, tokenize(sig.Content)) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		experiments = append(experiments, models.Experiment{
			Name:          rule.ExperimentName,
			Description:   rule.ExperimentDescription,
			SuccessMetric: rule.ExperimentMetric,
			Confidence:    rule.Confidence,
		})
	}
	return experiments
}

func buildSummary(signals []models.Signal) string {
	byType := make(map[string]int)
	var totalConfidence float64
	high := 0

	for _, sig := range signals {
		byType[string(sig.Type)]++
		totalConfidence += sig.Confidence
		if sig.Strength == models.StrengthHigh {
			high++
		}
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", byType[t], t))
	}

	return fmt.Sprintf("Synthesized from %d signals (%s); %d high strength; average confidence %.2f.",
		len(signals), strings.Join(parts, ", "), high, totalConfidence/float64(len(signals)))
}

var snippetsByType = map[models.SignalType]string{
	models.SignalCompetitor: "Competitors are moving; position against their latest offer before it settles in.",
	models.SignalMarket:     "The market is shifting in your favor; lead with what customers are already searching for.",
	models.SignalPricing:    "Price-sensitive buyers are comparing; make your value per dollar explicit.",
	models.SignalProduct:    "Product chatter is trending; anchor your copy to the features people mention.",
	models.SignalSentiment:  "Sentiment is in motion; acknowledge the conversation and steer it.",
}

func buildCopySnippets(signals []models.Signal) []string {
	seen := make(map[models.SignalType]bool)
	var snippets []string

	for _, sig := range signals {
		if seen[sig.Type] {
			continue
		}
		seen[sig.Type] = true
		if snippet, ok := snippetsByType[sig.Type]; ok {
			snippets = append(snippets, snippet)
		}
	}
	return snippets
}
