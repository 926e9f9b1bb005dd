package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketscout/backend/internal/metrics"
	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/search/xref"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/internal/verifier"
	"github.com/marketscout/backend/pkg/errs"
	"github.com/marketscout/backend/pkg/logger"
)

type SignalStore interface {
	InsertSignal(ctx context.Context, s *models.Signal) error
}

type CrossReferencer interface {
	Lookup(ctx context.Context, name string) ([]xref.Result, error)
}

// Alerter is notified of freshly created signals, e.g. to push live
// events to connected clients. It must not block.
type Alerter interface {
	SignalCreated(tenantID string, s *models.Signal)
}

// Notifier records durable alerts for signals worth flagging.
type Notifier interface {
	SignalAlert(ctx context.Context, tenantID string, s *models.Signal)
}

// Outcome reports one observation's fate. A batch is never
// all-or-nothing: each item succeeds or fails on its own.
type Outcome struct {
	Observation scan.RawObservation
	Signal      *models.Signal
	Verification verifier.Result
	Err         error
}

type Config struct {
	HighStrengthCutoff float64
	MedStrengthCutoff  float64
	FreshnessDecayDays int
	Concurrency        int
}

func DefaultConfig() Config {
	return Config{
		HighStrengthCutoff: 0.75,
		MedStrengthCutoff:  0.45,
		FreshnessDecayDays: 30,
		Concurrency:        8,
	}
}

type Service struct {
	store    SignalStore
	xref     CrossReferencer
	verifier *verifier.Verifier
	alerter  Alerter
	notifier Notifier
	cfg      Config
}

func NewService(store SignalStore, crossRef CrossReferencer, v *verifier.Verifier, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.FreshnessDecayDays <= 0 {
		cfg.FreshnessDecayDays = 30
	}
	return &Service{
		store:    store,
		xref:     crossRef,
		verifier: v,
		cfg:      cfg,
	}
}

// SetAlerter attaches a live-event sink. Optional.
func (s *Service) SetAlerter(a Alerter) {
	s.alerter = a
}

// SetNotifier attaches a durable alert sink. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Ingest verifies and persists a batch of raw observations for one
// tenant. Items are processed with bounded fan-out; each call is fully
// independent, so concurrent ingests for the same tenant are safe.
func (s *Service) Ingest(ctx context.Context, tenantID string, raw []scan.RawObservation) ([]Outcome, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}

	outcomes := make([]Outcome, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range raw {
		i := i
		g.Go(func() error {
			outcomes[i] = s.ingestOne(gctx, tenantID, raw[i])
			return nil
		})
	}
	g.Wait()

	created := 0
	for _, o := range outcomes {
		if o.Err == nil {
			created++
		}
	}

	logger.Info("Ingestion batch completed",
		zap.String("tenant_id", tenantID),
		zap.Int("observations", len(raw)),
		zap.Int("created", created),
	)
	metrics.SignalsIngested.Add(float64(created))

	return outcomes, nil
}

func (s *Service) ingestOne(ctx context.Context, tenantID string, obs scan.RawObservation) Outcome {
	outcome := Outcome{Observation: obs}

	refs, err := s.xref.Lookup(ctx, obs.Name)
	if err != nil {
		// Degrade to worst-case scoring: zero corroboration beats
		// dropping the observation on the floor.
		logger.Warn("Cross-reference lookup failed, scoring without corroboration",
			zap.String("tenant_id", tenantID),
			zap.String("name", obs.Name),
			zap.Error(err),
		)
		refs = nil
	}

	verification := s.verifier.Score(obs, refs)
	outcome.Verification = verification
	metrics.VerifierConfidence.Observe(verification.Confidence)

	now := time.Now().UTC()
	observedAt := obs.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	signal := &models.Signal{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Type:          models.SignalType(obs.Type),
		Source:        obs.Source,
		Content:       obs.Content,
		Confidence:    verification.Confidence,
		Strength:      models.StrengthForConfidence(verification.Confidence, s.cfg.HighStrengthCutoff, s.cfg.MedStrengthCutoff),
		Freshness:     s.freshness(observedAt, now),
		EvidenceCount: verification.EvidenceCount,
		ObservedAt:    observedAt,
		CreatedAt:     now,
	}

	if err := s.store.InsertSignal(ctx, signal); err != nil {
		logger.Error("Failed to persist signal",
			zap.String("tenant_id", tenantID),
			zap.String("source", obs.Source),
			zap.Error(err),
		)
		outcome.Err = err
		return outcome
	}

	outcome.Signal = signal
	if s.alerter != nil {
		s.alerter.SignalCreated(tenantID, signal)
	}
	if s.notifier != nil {
		s.notifier.SignalAlert(ctx, tenantID, signal)
	}
	return outcome
}

// freshness decays linearly from 1.0 at observation time to 0.0 once
// the observation is FreshnessDecayDays old.
func (s *Service) freshness(observedAt, now time.Time) float64 {
	ageDays := now.Sub(observedAt).Hours() / 24
	return models.Clamp01(1 - ageDays/float64(s.cfg.FreshnessDecayDays))
}
