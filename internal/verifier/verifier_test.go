package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/search/xref"
)

func fullObservation() scan.RawObservation {
	return scan.RawObservation{
		Type:    "competitor",
		Source:  "web",
		Name:    "Acme Coffee",
		Content: "Specialty roaster opening a second location downtown.",
		Phone:   "555-0100",
		Email:   "hello@acmecoffee.example",
		Website: "https://acmecoffee.example",
		Location: "Portland, OR",
		StructuredData: map[string]interface{}{"rating": 4.6},
	}
}

func mentionRefs(n int) []xref.Result {
	refs := make([]xref.Result, n)
	for i := range refs {
		refs[i] = xref.Result{
			Title:   "Acme Coffee review",
			Snippet: "Great espresso at Acme Coffee.",
		}
	}
	return refs
}

func TestScoreFullProfileWideCorroboration(t *testing.T) {
	v := New(DefaultWeights())

	result := v.Score(fullObservation(), mentionRefs(5))

	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.InDelta(t, 1.0, result.QualityScore, 1e-9)
	assert.Equal(t, 5, result.EvidenceCount)
	assert.Empty(t, result.RedFlags)
	assert.Contains(t, result.LegitimacyIndicators, "complete_profile")
	assert.Contains(t, result.LegitimacyIndicators, "multiple_contact_channels")
	assert.Contains(t, result.LegitimacyIndicators, "cross_referenced")
	assert.Contains(t, result.LegitimacyIndicators, "widely_corroborated")
}

func TestScoreFullContactFloorsConfidence(t *testing.T) {
	v := New(DefaultWeights())

	// All three contact channels and no red flags guarantee at least
	// base plus the full contact weight, whatever the other inputs.
	obs := scan.RawObservation{
		Name:    "Acme Coffee",
		Phone:   "555-0100",
		Email:   "hello@acmecoffee.example",
		Website: "https://acmecoffee.example",
	}
	result := v.Score(obs, nil)

	assert.GreaterOrEqual(t, result.Confidence, 0.65)
}

func TestScoreRequiredFieldsOnly(t *testing.T) {
	v := New(DefaultWeights())

	obs := scan.RawObservation{
		Type:    "competitor",
		Source:  "web",
		Name:    "Acme Coffee",
		Content: "A coffee shop.",
	}
	result := v.Score(obs, nil)

	// base 0.5 + completeness weight * 0.5 (required half only).
	assert.InDelta(t, 0.60, result.Confidence, 1e-9)
	assert.InDelta(t, 0.25, result.QualityScore, 1e-9)
	assert.Zero(t, result.EvidenceCount)
	assert.NotContains(t, result.LegitimacyIndicators, "cross_referenced")
}

func TestScoreRedFlagPenalty(t *testing.T) {
	v := New(DefaultWeights())
	obs := scan.RawObservation{
		Type:    "competitor",
		Source:  "web",
		Name:    "Acme Coffee",
		Content: "A coffee shop.",
	}

	clean := v.Score(obs, mentionRefs(1))
	flagged := v.Score(obs, []xref.Result{{
		Title:   "Acme Coffee warning",
		Snippet: "Possible scam, buyer beware.",
	}})

	assert.Less(t, flagged.Confidence, clean.Confidence)
	// One flagged result, three distinct terms.
	assert.InDelta(t, clean.Confidence-0.10, flagged.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"scam", "beware", "warning"}, flagged.RedFlags)
}

func TestScoreFlaggedResultCountedOnce(t *testing.T) {
	v := New(DefaultWeights())
	obs := scan.RawObservation{Name: "Acme Coffee"}

	one := v.Score(obs, []xref.Result{{Snippet: "scam fraud fake"}})
	two := v.Score(obs, []xref.Result{
		{Snippet: "scam fraud fake"},
		{Snippet: "total scam"},
	})

	assert.InDelta(t, one.Confidence-0.10, two.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"scam", "fraud", "fake"}, one.RedFlags)
	assert.ElementsMatch(t, []string{"scam", "fraud", "fake"}, two.RedFlags)
}

func TestScoreCrossRefSaturates(t *testing.T) {
	v := New(DefaultWeights())
	obs := fullObservation()

	atCap := v.Score(obs, mentionRefs(5))
	beyond := v.Score(obs, mentionRefs(50))

	assert.InDelta(t, atCap.Confidence, beyond.Confidence, 1e-9)
	assert.Equal(t, 50, beyond.EvidenceCount)
}

func TestScoreClampsToUnitInterval(t *testing.T) {
	heavy := New(Weights{
		Base:           0.9,
		Completeness:   0.9,
		Contact:        0.9,
		CrossRef:       0.9,
		RedFlagPenalty: 0.9,
	})

	high := heavy.Score(fullObservation(), mentionRefs(10))
	assert.LessOrEqual(t, high.Confidence, 1.0)

	flagged := make([]xref.Result, 10)
	for i := range flagged {
		flagged[i] = xref.Result{Snippet: "scam"}
	}
	low := heavy.Score(scan.RawObservation{Name: "x"}, flagged)
	assert.GreaterOrEqual(t, low.Confidence, 0.0)
}

func TestScoreDeterministic(t *testing.T) {
	v := New(DefaultWeights())
	obs := fullObservation()
	refs := append(mentionRefs(3), xref.Result{Snippet: "one complaint filed"})

	first := v.Score(obs, refs)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, v.Score(obs, refs))
	}
}
