package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/errs"
)

type fakeStore struct {
	notifications []models.Notification
	signals       []models.Signal
}

func (f *fakeStore) InsertNotification(_ context.Context, n *models.Notification) error {
	// Prepend: the real store returns newest first.
	f.notifications = append([]models.Notification{*n}, f.notifications...)
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, tenantID, userID string, since time.Time) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.TenantID == tenantID && n.UserID == userID && !n.CreatedAt.Before(since) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, tenantID, id string) error {
	for i, n := range f.notifications {
		if n.TenantID == tenantID && n.ID == id {
			f.notifications[i].IsRead = true
			return nil
		}
	}
	return errs.NotFound("notification %s not found", id)
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, tenantID, userID string) (int64, error) {
	var updated int64
	for i, n := range f.notifications {
		if n.TenantID == tenantID && n.UserID == userID && !n.IsRead {
			f.notifications[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStore) ListSignals(_ context.Context, tenantID string, filter models.SignalFilter) ([]models.Signal, error) {
	var out []models.Signal
	for _, s := range f.signals {
		if s.TenantID != tenantID {
			continue
		}
		if filter.Strength != "" && s.Strength != filter.Strength {
			continue
		}
		out = append(out, s)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func TestNotifyValidation(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, Config{})

	_, err := svc.Notify(context.Background(), "", "u1", "signal_alert", "title", "msg", Refs{})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
	_, err = svc.Notify(context.Background(), "t1", "", "signal_alert", "title", "msg", Refs{})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
	_, err = svc.Notify(context.Background(), "t1", "u1", "signal_alert", " ", "msg", Refs{})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestNotifyAppends(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, Config{})

	n, err := svc.Notify(context.Background(), "t1", "u1", "dossier_ready", "Dossier ready", "Your dossier is ready.", Refs{DossierID: "d1"})
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "d1", n.DossierID)
	assert.False(t, n.IsRead)
	require.Len(t, store.notifications, 1)
}

func TestDigestRollup(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, Config{HighlightCount: 2})

	for i, typ := range []string{"signal_alert", "signal_alert", "dossier_ready"} {
		n, err := svc.Notify(context.Background(), "t1", "u1", typ, "title", "msg", Refs{})
		require.NoError(t, err)
		if i == 0 {
			require.NoError(t, svc.MarkRead(context.Background(), "t1", n.ID))
		}
	}
	store.signals = []models.Signal{
		{ID: "s1", TenantID: "t1", Strength: models.StrengthHigh, ObservedAt: time.Now().UTC()},
		{ID: "s2", TenantID: "t1", Strength: models.StrengthLow, ObservedAt: time.Now().UTC()},
	}

	report, err := svc.Digest(context.Background(), "t1", "u1", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, report.WindowDays)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Unread)
	assert.Equal(t, map[string]int{"signal_alert": 2, "dossier_ready": 1}, report.ByType)
	assert.Len(t, report.Highlights, 2)
	require.Len(t, report.RecentHighStrengthSignals, 1)
	assert.Equal(t, "s1", report.RecentHighStrengthSignals[0].ID)
	assert.NotEmpty(t, report.RecommendedAction)
}

func TestDigestScopedToUser(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, Config{})

	_, err := svc.Notify(context.Background(), "t1", "u1", "signal_alert", "mine", "msg", Refs{})
	require.NoError(t, err)
	_, err = svc.Notify(context.Background(), "t1", "u2", "signal_alert", "theirs", "msg", Refs{})
	require.NoError(t, err)

	report, err := svc.Digest(context.Background(), "t1", "u1", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, "mine", report.Highlights[0].Title)
}

func TestMarkReadIdempotent(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, Config{})

	n, err := svc.Notify(context.Background(), "t1", "u1", "signal_alert", "title", "msg", Refs{})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), "t1", n.ID))
	require.NoError(t, svc.MarkRead(context.Background(), "t1", n.ID))
	assert.True(t, store.notifications[0].IsRead)
}

func TestMarkAllRead(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, Config{})

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(context.Background(), "t1", "u1", "signal_alert", "title", "msg", Refs{})
		require.NoError(t, err)
	}
	_, err := svc.Notify(context.Background(), "t1", "u2", "signal_alert", "title", "msg", Refs{})
	require.NoError(t, err)

	updated, err := svc.MarkAllRead(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, updated)

	updated, err = svc.MarkAllRead(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestSignalAlertHighStrengthOnly(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, Config{})

	svc.SignalAlert(context.Background(), "t1", &models.Signal{
		ID:            "s1",
		TenantID:      "t1",
		Type:          models.SignalCompetitor,
		Source:        "instagram",
		Strength:      models.StrengthHigh,
		Confidence:    0.81,
		EvidenceCount: 4,
	})
	svc.SignalAlert(context.Background(), "t1", &models.Signal{
		ID:       "s2",
		TenantID: "t1",
		Strength: models.StrengthMedium,
	})
	svc.SignalAlert(context.Background(), "t1", nil)

	require.Len(t, store.notifications, 1)
	n := store.notifications[0]
	assert.Equal(t, "owner", n.UserID)
	assert.Equal(t, "signal_alert", n.Type)
	assert.Equal(t, "s1", n.SignalID)
	assert.Contains(t, n.Title, "instagram")
}
