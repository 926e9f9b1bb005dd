package verifier

import (
	"strings"

	"go.uber.org/zap"

	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/search/xref"
	"github.com/marketscout/backend/internal/storage/models"
	"github.com/marketscout/backend/pkg/logger"
)

// redFlagTerms trip the penalty when they show up in a cross-reference
// result. Each result counts at most once regardless of term count.
var redFlagTerms = []string{"scam", "fraud", "fake", "complaint", "beware", "warning"}

// Weights are the tunable scoring coefficients. Operators adjust them
// through config; the code never hard-codes a second copy.
type Weights struct {
	Base               float64
	Completeness       float64
	Contact            float64
	CrossRef           float64
	RedFlagPenalty     float64
	CrossRefSaturation int
}

func DefaultWeights() Weights {
	return Weights{
		Base:               0.5,
		Completeness:       0.20,
		Contact:            0.15,
		CrossRef:           0.15,
		RedFlagPenalty:     0.10,
		CrossRefSaturation: 5,
	}
}

type Result struct {
	Confidence           float64
	QualityScore         float64
	LegitimacyIndicators []string
	RedFlags             []string
	EvidenceCount        int
}

type Verifier struct {
	weights Weights
}

func New(weights Weights) *Verifier {
	if weights.CrossRefSaturation <= 0 {
		weights.CrossRefSaturation = 5
	}
	return &Verifier{weights: weights}
}

// Score rates an observation's trustworthiness from its own fields and
// the cross-reference results. It is pure: same inputs, same output,
// no I/O. Zero cross-reference results just zero that sub-score.
func (v *Verifier) Score(obs scan.RawObservation, refs []xref.Result) Result {
	completeness := v.completenessScore(obs)
	contact := contactScore(obs)
	mentions, flaggedResults, flags := crossReference(obs.Name, refs)

	density := float64(mentions) / float64(v.weights.CrossRefSaturation)
	if density > 1.0 {
		density = 1.0
	}

	confidence := v.weights.Base +
		v.weights.Completeness*completeness +
		v.weights.Contact*contact +
		v.weights.CrossRef*density -
		v.weights.RedFlagPenalty*float64(flaggedResults)
	confidence = models.Clamp01(confidence)

	result := Result{
		Confidence:    confidence,
		QualityScore:  models.Clamp01((completeness + contact) / 2),
		RedFlags:      flags,
		EvidenceCount: mentions,
	}

	if completeness >= 1.0 {
		result.LegitimacyIndicators = append(result.LegitimacyIndicators, "complete_profile")
	}
	if contactChannels(obs) >= 2 {
		result.LegitimacyIndicators = append(result.LegitimacyIndicators, "multiple_contact_channels")
	}
	if mentions > 0 {
		result.LegitimacyIndicators = append(result.LegitimacyIndicators, "cross_referenced")
	}
	if density >= 1.0 {
		result.LegitimacyIndicators = append(result.LegitimacyIndicators, "widely_corroborated")
	}

	logger.Debug("Observation scored",
		zap.String("name", obs.Name),
		zap.Float64("confidence", confidence),
		zap.Int("mentions", mentions),
		zap.Int("flagged_results", flaggedResults),
	)

	return result
}

// completenessScore gives half weight to the required fields and half
// to the optional profile fields (contact, location, structured data).
func (v *Verifier) completenessScore(obs scan.RawObservation) float64 {
	required := []string{obs.Type, obs.Source, obs.Name, obs.Content}
	present := 0
	for _, f := range required {
		if strings.TrimSpace(f) != "" {
			present++
		}
	}
	requiredScore := float64(present) / float64(len(required))

	optional := 0.0
	if contactChannels(obs) > 0 {
		optional++
	}
	if strings.TrimSpace(obs.Location) != "" {
		optional++
	}
	if len(obs.StructuredData) > 0 {
		optional++
	}
	optionalScore := optional / 3.0

	return requiredScore*0.5 + optionalScore*0.5
}

func contactChannels(obs scan.RawObservation) int {
	channels := 0
	if strings.TrimSpace(obs.Phone) != "" {
		channels++
	}
	if strings.TrimSpace(obs.Email) != "" {
		channels++
	}
	if strings.TrimSpace(obs.Website) != "" {
		channels++
	}
	return channels
}

func contactScore(obs scan.RawObservation) float64 {
	score := float64(contactChannels(obs)) / 3.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// crossReference counts results mentioning the observation's name and
// results containing a blocklisted term. A result with several terms
// is flagged once; every distinct term is still reported.
func crossReference(name string, refs []xref.Result) (mentions, flaggedResults int, flags []string) {
	lowerName := strings.ToLower(strings.TrimSpace(name))
	seenTerms := make(map[string]bool)

	for _, ref := range refs {
		text := strings.ToLower(ref.Title + " " + ref.Snippet)

		if lowerName != "" && strings.Contains(text, lowerName) {
			mentions++
		}

		flagged := false
		for _, term := range redFlagTerms {
			if strings.Contains(text, term) {
				flagged = true
				if !seenTerms[term] {
					seenTerms[term] = true
					flags = append(flags, term)
				}
			}
		}
		if flagged {
			flaggedResults++
		}
	}
	return mentions, flaggedResults, flags
}
