package scoring

import "math"

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Bucket breakpoints. A score equal to a breakpoint belongs to the higher
// bucket. These are the only thresholds in the codebase.
const (
	ModerateThreshold = 5.0
	HighThreshold     = 7.0
)

type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

type Severity string

const (
	SeverityFavorable Severity = "favorable"
	SeverityCaution   Severity = "caution"
	SeverityCritical  Severity = "critical"
)

// Variant is the badge variant used by the presentation layer.
func (s Severity) Variant() string {
	switch s {
	case SeverityFavorable:
		return "success"
	case SeverityCaution:
		return "warning"
	case SeverityCritical:
		return "danger"
	default:
		return "secondary"
	}
}

// Color is the chart fill colour for the severity.
func (s Severity) Color() string {
	switch s {
	case SeverityFavorable:
		return "#28a745"
	case SeverityCaution:
		return "#ffc107"
	case SeverityCritical:
		return "#dc3545"
	default:
		return "#6c757d"
	}
}

// Classification is the qualitative view of a continuous score.
type Classification struct {
	Level    Level    `json:"level"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
	Variant  string   `json:"variant"`
}

// Classify buckets score into Low (< 5), Moderate (5 to < 7) or High (>= 7).
func Classify(score float64) (Classification, error) {
	return classify("score", score)
}

// ClassifyComplexity is Classify with the protocol complexity wording,
// e.g. "High Complexity".
func ClassifyComplexity(score float64) (Classification, error) {
	c, err := classify("protocol_complexity_score", score)
	if err != nil {
		return Classification{}, err
	}
	c.Label += " Complexity"
	return c, nil
}

func classify(field string, score float64) (Classification, error) {
	if err := checkRange(field, "", score); err != nil {
		return Classification{}, err
	}
	var c Classification
	switch {
	case score >= HighThreshold:
		c = Classification{Level: LevelHigh, Label: "High", Severity: SeverityCritical}
	case score >= ModerateThreshold:
		c = Classification{Level: LevelModerate, Label: "Moderate", Severity: SeverityCaution}
	default:
		c = Classification{Level: LevelLow, Label: "Low", Severity: SeverityFavorable}
	}
	c.Variant = c.Severity.Variant()
	return c, nil
}

func checkRange(field, siteID string, v float64) error {
	if math.IsNaN(v) || v < MinScore || v > MaxScore {
		return &InvalidScoreError{Field: field, SiteID: siteID, Value: v}
	}
	return nil
}
