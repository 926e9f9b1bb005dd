package notify

import (
	"context"
	"fmt"
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
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, tenantID, userID string, since time.Time) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, tenantID, id string) error
	MarkAllNotificationsRead(ctx context.Context, tenantID, userID string) (int64, error)
	ListSignals(ctx context.Context, tenantID string, filter models.SignalFilter) ([]models.Signal, error)
}

type Cache interface {
	GetJSON(ctx context.Context, key string, value interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Refs optionally links a notification to the entities it announces.
type Refs struct {
	SignalID  string
	DossierID string
}

type DigestReport struct {
	WindowDays                int                   `json:"window_days"`
	Total                     int                   `json:"total"`
	Unread                    int                   `json:"unread"`
	ByType                    map[string]int        `json:"by_type"`
	Highlights                []models.Notification `json:"highlights"`
	RecentHighStrengthSignals []models.Signal       `json:"recent_high_strength_signals"`
	RecommendedAction         string                `json:"recommended_action"`
}

// recommendedAction is intentionally static copy, not derived from the
// data in the digest.
const recommendedAction = "Review your high-strength signals and refresh any campaign dossiers older than a week."

type Config struct {
	HighlightCount int
	CacheTTL       time.Duration
	// AlertRecipient receives signal alerts raised by ingestion.
	AlertRecipient string
}

type Service struct {
	store Store
	cache Cache
	cfg   Config
}

func NewService(store Store, cache Cache, cfg Config) *Service {
	if cfg.HighlightCount <= 0 {
		cfg.HighlightCount = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.AlertRecipient == "" {
		cfg.AlertRecipient = "owner"
	}
	return &Service{store: store, cache: cache, cfg: cfg}
}

// Notify appends one notification. It only fails if the store rejects
// the write.
func (s *Service) Notify(ctx context.Context, tenantID, userID, notifType, title, message string, refs Refs) (*models.Notification, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Validation("user id is required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, errs.Validation("title is required")
	}

	n := &models.Notification{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		SignalID:  refs.SignalID,
		DossierID: refs.DossierID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.InsertNotification(ctx, n); err != nil {
		return nil, err
	}

	metrics.NotificationsCreated.WithLabelValues(notifType).Inc()
	logger.Debug("Notification created",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.String("type", notifType),
	)
	return n, nil
}

// SignalAlert records a notification for the tenant's alert recipient
// when ingestion produces a high-strength signal. Lower strengths are
// ignored, and a failed write never propagates back into ingestion.
func (s *Service) SignalAlert(ctx context.Context, tenantID string, sig *models.Signal) {
	if sig == nil || sig.Strength != models.StrengthHigh {
		return
	}
	title := fmt.Sprintf("High-strength %s signal from %s", sig.Type, sig.Source)
	message := fmt.Sprintf("Confidence %.2f with %d corroborating references.", sig.Confidence, sig.EvidenceCount)
	if _, err := s.Notify(ctx, tenantID, s.cfg.AlertRecipient, "signal_alert", title, message, Refs{SignalID: sig.ID}); err != nil {
		logger.Warn("Signal alert notification failed",
			zap.String("tenant_id", tenantID),
			zap.String("signal_id", sig.ID),
			zap.Error(err),
		)
	}
}

// Digest rolls up the user's trailing notification window. Highlights
// are simply the most recent notifications regardless of type.
func (s *Service) Digest(ctx context.Context, tenantID, userID string, windowDays int) (*DigestReport, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errs.Validation("tenant id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Validation("user id is required")
	}
	if windowDays <= 0 {
		windowDays = 1
	}

	cacheKey := fmt.Sprintf("digest:%s", utils.HashString(fmt.Sprintf("%s:%s:%d", tenantID, userID, windowDays)))
	if s.cache != nil {
		var cached DigestReport
		hit, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Digest cache read failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("digest").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("digest").Inc()
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	notifications, err := s.store.ListNotifications(ctx, tenantID, userID, since)
	if err != nil {
		return nil, err
	}

	report := &DigestReport{
		WindowDays:        windowDays,
		Total:             len(notifications),
		ByType:            make(map[string]int),
		RecommendedAction: recommendedAction,
	}

	for _, n := range notifications {
		report.ByType[n.Type]++
		if !n.IsRead {
			report.Unread++
		}
	}

	// Notifications come back newest first.
	highlights := notifications
	if len(highlights) > s.cfg.HighlightCount {
		highlights = highlights[:s.cfg.HighlightCount]
	}
	report.Highlights = highlights

	signals, err := s.store.ListSignals(ctx, tenantID, models.SignalFilter{
		Strength: models.StrengthHigh,
		Since:    since,
		Limit:    s.cfg.HighlightCount,
	})
	if err != nil {
		return nil, err
	}
	report.RecentHighStrengthSignals = signals

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, report, s.cfg.CacheTTL); err != nil {
			logger.Warn("Digest cache write failed", zap.Error(err))
		}
	}

	return report, nil
}

// MarkRead is idempotent: marking an already-read notification is a
// no-op, not an error.
func (s *Service) MarkRead(ctx context.Context, tenantID, notificationID string) error {
	return s.store.MarkNotificationRead(ctx, tenantID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errs.Validation("user id is required")
	}
	return s.store.MarkAllNotificationsRead(ctx, tenantID, userID)
}
