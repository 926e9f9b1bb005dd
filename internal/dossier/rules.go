package dossier

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Rule maps a keyword bucket to a canned hypothesis and experiment.
// Rules are evaluated in definition order, so the table is auditable
// and the output is reproducible for a fixed signal set.
type Rule struct {
	Name                  string
	Keywords              []string
	HypothesisTemplate    string
	ExperimentName        string
	ExperimentDescription string
	ExperimentMetric      string
	Confidence            float64
}

var DefaultRules = []Rule{
	{
		Name:                  "sustainability",
		Keywords:              []string{"sustainability", "sustainable", "eco", "green", "recycled", "carbon"},
		HypothesisTemplate:    "Customers in this market respond to sustainability positioning",
		ExperimentName:        "Sustainability angle A/B test",
		ExperimentDescription: "Run ad copy variants leading with sustainability claims against the current control",
		ExperimentMetric:      "click-through rate uplift",
		Confidence:            0.7,
	},
	{
		Name:                  "demand",
		Keywords:              []string{"demand", "waitlist", "sold out", "backorder", "growing", "surge"},
		HypothesisTemplate:    "Demand for this category is rising and supports scarcity messaging",
		ExperimentName:        "Scarcity messaging test",
		ExperimentDescription: "Add limited-availability framing to landing pages for one cohort",
		ExperimentMetric:      "conversion rate",
		Confidence:            0.65,
	},
	{
		Name:                  "pricing",
		Keywords:              []string{"price", "pricing", "discount", "cheap", "premium", "cost"},
		HypothesisTemplate:    "Price positioning is a decision driver against tracked competitors",
		ExperimentName:        "Price anchor test",
		ExperimentDescription: "Show a premium anchor option alongside the standard offer",
		ExperimentMetric:      "average order value",
		Confidence:            0.6,
	},
	{
		Name:                  "social_proof",
		Keywords:              []string{"review", "reviews", "testimonial", "rating", "recommended"},
		HypothesisTemplate:    "Social proof is underused relative to competitor messaging",
		ExperimentName:        "Review prominence test",
		ExperimentDescription: "Surface top reviews above the fold on product pages",
		ExperimentMetric:      "add-to-cart rate",
		Confidence:            0.6,
	},
	{
		Name:                  "convenience",
		Keywords:              []string{"fast", "shipping", "delivery", "convenient", "same-day", "subscription"},
		HypothesisTemplate:    "Fulfillment speed and convenience differentiate offers in this segment",
		ExperimentName:        "Delivery promise test",
		ExperimentDescription: "Promote the fastest available delivery option in hero copy",
		ExperimentMetric:      "checkout completion rate",
		Confidence:            0.55,
	},
}

// tokenize lowercases and splits content into tokens for keyword
// matching. prose handles punctuation-adjacent words cleanly; if it
// fails we fall back to whitespace splitting.
func tokenize(content string) map[string]bool {
	tokens := make(map[string]bool)

	doc, err := prose.NewDocument(content, prose.WithTagging(false), prose.WithExtraction(false), prose.WithSegmentation(false))
	if err == nil {
		for _, tok := range doc.Tokens() {
			tokens[strings.ToLower(tok.Text)] = true
		}
		return tokens
	}

	for _, field := range strings.Fields(content) {
		tokens[strings.ToLower(strings.Trim(field, ".,;:!?\"'()"))] = true
	}
	return tokens
}

// matches reports whether the rule's keyword bucket hits the content.
// Single-word keywords match against tokens; phrases match as
// substrings of the lowercased content.
func (r Rule) matches(lowerContent string, tokens map[string]bool) bool {
	for _, kw := range r.Keywords {
		if strings.ContainsAny(kw, " -") {
			if strings.Contains(lowerContent, kw) {
				return true
			}
			continue
		}
		if tokens[kw] {
			return true
		}
	}
	return false
}
