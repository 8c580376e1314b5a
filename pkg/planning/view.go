package planning

import (
	"math"
	"time"

	"github.com/synaptica-ai/rwe-planner/pkg/scoring"
)

const (
	// DefaultChartSites is how many sites the score chart shows.
	DefaultChartSites = 5
	// MaxListedSites caps recommended_sites in API responses.
	MaxListedSites = 10
	// CohortBasePopulation is the reference population for coverage.
	CohortBasePopulation = 100000

	remainderColor = "#e9ecef"
)

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
}

type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Charts struct {
	SiteScores Chart `json:"site_scores"`
	Complexity Chart `json:"complexity"`
}

// PlanView is the chart-ready payload served to the UI.
type PlanView struct {
	StudyID                   string                   `json:"study_id"`
	ProtocolComplexityScore   float64                  `json:"protocol_complexity_score"`
	Complexity                scoring.Classification   `json:"complexity"`
	EstimatedTotalCohortSize  int                      `json:"estimated_total_cohort_size"`
	CohortCoveragePercent     int                      `json:"cohort_coverage_percent"`
	RiskFactors               []string                 `json:"risk_factors"`
	OptimizationOpportunities []string                 `json:"optimization_opportunities"`
	RecommendedSites          []scoring.SiteCandidate  `json:"recommended_sites"`
	TotalSites                int                      `json:"total_sites"`
	DataSources               []map[string]interface{} `json:"data_sources,omitempty"`
	Timeline                  *TimelineEstimate        `json:"timeline_estimate,omitempty"`
	Charts                    Charts                   `json:"charts"`
	CreatedAt                 time.Time                `json:"created_at"`
}

var subScoreSeries = []struct {
	label string
	color string
	value func(scoring.SiteCandidate) float64
}{
	{"Feasibility Score", "rgba(54, 162, 235, 0.6)", func(s scoring.SiteCandidate) float64 { return s.Feasibility }},
	{"Diversity Score", "rgba(255, 206, 86, 0.6)", func(s scoring.SiteCandidate) float64 { return s.Diversity }},
	{"Data Availability", "rgba(75, 192, 192, 0.6)", func(s scoring.SiteCandidate) float64 { return s.DataAvailability }},
}

// View builds the presentation payload. chartSites limits the score chart
// (DefaultChartSites when <= 0); the listed sites are capped at
// MaxListedSites.
func View(result *StudyPlanResult, chartSites int) PlanView {
	if chartSites <= 0 {
		chartSites = DefaultChartSites
	}
	return PlanView{
		StudyID:                   result.StudyID,
		ProtocolComplexityScore:   result.ProtocolComplexityScore,
		Complexity:                result.Complexity,
		EstimatedTotalCohortSize:  result.EstimatedTotalCohortSize,
		CohortCoveragePercent:     int(math.Round(float64(result.EstimatedTotalCohortSize) / CohortBasePopulation * 100)),
		RiskFactors:               result.RiskFactors,
		OptimizationOpportunities: result.OptimizationOpportunities,
		RecommendedSites:          scoring.Top(result.RankedSites, MaxListedSites),
		TotalSites:                len(result.RankedSites),
		DataSources:               result.DataSources,
		Timeline:                  result.Timeline,
		Charts: Charts{
			SiteScores: siteChart(scoring.Top(result.RankedSites, chartSites)),
			Complexity: complexityChart(result.ProtocolComplexityScore, result.Complexity),
		},
		CreatedAt: result.CreatedAt,
	}
}

func siteChart(sites []scoring.SiteCandidate) Chart {
	chart := Chart{Labels: make([]string, len(sites))}
	for i, s := range sites {
		chart.Labels[i] = s.SiteName
	}
	for _, series := range subScoreSeries {
		ds := Dataset{Label: series.label, Data: make([]float64, len(sites)), BackgroundColor: []string{series.color}}
		for i, s := range sites {
			ds.Data[i] = series.value(s)
		}
		chart.Datasets = append(chart.Datasets, ds)
	}
	return chart
}

func complexityChart(score float64, class scoring.Classification) Chart {
	return Chart{
		Labels: []string{"Protocol Complexity"},
		Datasets: []Dataset{{
			Label:           class.Label,
			Data:            []float64{score, scoring.MaxScore - score},
			BackgroundColor: []string{class.Severity.Color(), remainderColor},
		}},
	}
}

const (
	RecommendProceed  = "Proceed with full planning"
	RecommendSimplify = "Consider protocol simplification first"
)

type QuickAssessmentResult struct {
	Assessment              string                 `json:"assessment"`
	ProtocolComplexityScore float64                `json:"protocol_complexity_score"`
	Complexity              scoring.Classification `json:"complexity"`
	Recommendation          string                 `json:"recommendation"`
	Warnings                []string               `json:"warnings"`
	Recommendations         []string               `json:"recommendations"`
}

// QuickAssessment classifies a complexity score and recommends whether to
// plan directly or simplify first. High complexity calls for
// simplification.
func QuickAssessment(score float64) (*QuickAssessmentResult, error) {
	class, err := scoring.ClassifyComplexity(score)
	if err != nil {
		return nil, err
	}
	rec := RecommendProceed
	if class.Level == scoring.LevelHigh {
		rec = RecommendSimplify
	}
	return &QuickAssessmentResult{
		Assessment:              "quick",
		ProtocolComplexityScore: score,
		Complexity:              class,
		Recommendation:          rec,
		Warnings:                []string{},
		Recommendations:         []string{},
	}, nil
}
