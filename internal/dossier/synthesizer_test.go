package dossier

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
	signals  map[string][]models.Signal
	inserted []*models.Dossier
}

func newFakeStore(tenantID string, signals ...models.Signal) *fakeStore {
	return &fakeStore{signals: map[string][]models.Signal{tenantID: signals}}
}

func (f *fakeStore) SignalsByIDs(_ context.Context, tenantID string, ids []string) ([]models.Signal, error) {
	byID := make(map[string]models.Signal)
	for _, s := range f.signals[tenantID] {
		byID[s.ID] = s
	}
	var out []models.Signal
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSignals(_ context.Context, tenantID string, filter models.SignalFilter) ([]models.Signal, error) {
	var out []models.Signal
	for _, s := range f.signals[tenantID] {
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

func (f *fakeStore) InsertDossier(_ context.Context, d *models.Dossier) error {
	f.inserted = append(f.inserted, d)
	return nil
}

func testSignal(id string, sigType models.SignalType, content string) models.Signal {
	return models.Signal{
		ID:         id,
		TenantID:   "t1",
		Type:       sigType,
		Source:     "web",
		Content:    content,
		Confidence: 0.8,
		Strength:   models.StrengthHigh,
		ObservedAt: time.Now().UTC(),
	}
}

func TestSynthesizeByExplicitIDs(t *testing.T) {
	store := newFakeStore("t1",
		testSignal("s1", models.SignalCompetitor, "Competitor launched a sustainable packaging line."),
		testSignal("s2", models.SignalMarket, "Waitlist demand is growing across the segment."),
	)
	syn := NewSynthesizer(store, nil, 20)

	d, err := syn.Synthesize(context.Background(), "t1", "camp-1", Request{
		SignalIDs:          []string{"s1", "s2"},
		IncludeHypotheses:  true,
		IncludeExperiments: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", d.TenantID)
	assert.Equal(t, "camp-1", d.CampaignID)
	assert.Equal(t, []string{"s1", "s2"}, d.SignalIDs)
	assert.Equal(t, models.DossierDraft, d.Status)
	assert.NotEmpty(t, d.Summary)
	require.Len(t, store.inserted, 1)

	// Rule table order: sustainability fires on s1, demand on s2.
	require.Len(t, d.Hypotheses, 2)
	assert.Contains(t, d.Hypotheses[0].Statement, "sustainability positioning")
	assert.Equal(t, []string{"s1"}, d.Hypotheses[0].SupportingSignals)
	assert.Contains(t, d.Hypotheses[1].Statement, "scarcity messaging")
	assert.Equal(t, []string{"s2"}, d.Hypotheses[1].SupportingSignals)

	require.Len(t, d.Experiments, 2)
	assert.Equal(t, "Sustainability angle A/B test", d.Experiments[0].Name)
	assert.Equal(t, "Scarcity messaging test", d.Experiments[1].Name)
}

func TestSynthesizeDropsForeignIDs(t *testing.T) {
	store := newFakeStore("t1",
		testSignal("s1", models.SignalCompetitor, "Competitor raised prices."),
	)
	syn := NewSynthesizer(store, nil, 20)

	d, err := syn.Synthesize(context.Background(), "t1", "camp-1", Request{
		SignalIDs: []string{"s1", "someone-elses-signal"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, d.SignalIDs)
}

func TestSynthesizeEmptySetIsNotFound(t *testing.T) {
	syn := NewSynthesizer(newFakeStore("t1"), nil, 20)

	_, err := syn.Synthesize(context.Background(), "t1", "camp-1", Request{
		SignalIDs: []string{"missing"},
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = syn.Synthesize(context.Background(), "t1", "camp-1", Request{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSynthesizeValidation(t *testing.T) {
	syn := NewSynthesizer(newFakeStore("t1"), nil, 20)

	_, err := syn.Synthesize(context.Background(), "", "camp-1", Request{SignalIDs: []string{"s1"}})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = syn.Synthesize(context.Background(), "t1", "  ", Request{SignalIDs: []string{"s1"}})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestSynthesizeFilterDefaultsToHighStrength(t *testing.T) {
	low := testSignal("lo", models.SignalMarket, "quiet week")
	low.Strength = models.StrengthLow
	store := newFakeStore("t1",
		testSignal("hi", models.SignalPricing, "Deep discount war on premium tiers."),
		low,
	)
	syn := NewSynthesizer(store, nil, 20)

	d, err := syn.Synthesize(context.Background(), "t1", "camp-1", Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, d.SignalIDs)
}

func TestSynthesizeDeterministic(t *testing.T) {
	store := newFakeStore("t1",
		testSignal("s1", models.SignalSentiment, "Reviews praise the fast shipping and same-day delivery."),
	)
	syn := NewSynthesizer(store, nil, 20)
	req := Request{SignalIDs: []string{"s1"}, IncludeHypotheses: true}

	first, err := syn.Synthesize(context.Background(), "t1", "camp-1", req)
	require.NoError(t, err)
	second, err := syn.Synthesize(context.Background(), "t1", "camp-1", req)
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Hypotheses, second.Hypotheses)
	assert.Equal(t, first.CopySnippets, second.CopySnippets)
}

func TestRuleTokenMatching(t *testing.T) {
	content := "Premium pricing, they said. Same-day delivery too!"
	tokens := tokenize(content)
	lower := "premium pricing, they said. same-day delivery too!"

	var pricing, convenience, demand Rule
	for _, r := range DefaultRules {
		switch r.Name {
		case "pricing":
			pricing = r
		case "convenience":
			convenience = r
		case "demand":
			demand = r
		}
	}

	assert.True(t, pricing.matches(lower, tokens))
	assert.True(t, convenience.matches(lower, tokens))
	assert.False(t, demand.matches(lower, tokens))
}
