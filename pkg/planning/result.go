package planning

import (
	"time"

	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/scoring"
)

const (
	startupMonths     = 3
	closeoutMonths    = 3
	studyIDTimeLayout = "20060102_150405"
	studyIDPrefix     = "RWE_"
)

type TimelineEstimate struct {
	StartupMonths    int `json:"startup_months"`
	EnrollmentMonths int `json:"enrollment_months"`
	TotalMonths      int `json:"total_months"`
}

// StudyPlanResult is the assembled plan handed to presentation.
// RankedSites always holds the full ranking.
type StudyPlanResult struct {
	StudyID                   string                   `json:"study_id"`
	ProtocolComplexityScore   float64                  `json:"protocol_complexity_score"`
	Complexity                scoring.Classification   `json:"complexity"`
	EstimatedTotalCohortSize  int                      `json:"estimated_total_cohort_size"`
	RiskFactors               []string                 `json:"risk_factors"`
	OptimizationOpportunities []string                 `json:"optimization_opportunities"`
	RankedSites               []scoring.SiteCandidate  `json:"ranked_sites"`
	DataSources               []map[string]interface{} `json:"data_sources,omitempty"`
	Timeline                  *TimelineEstimate        `json:"timeline_estimate,omitempty"`
	CreatedAt                 time.Time                `json:"created_at"`
}

type AssembleOptions struct {
	// Submission, when set, drives the timeline estimate.
	Submission *StudySubmission
	// Now defaults to time.Now.
	Now func() time.Time
}

// Assemble derives the plan result from a planning service response. It
// performs no I/O; its only failures are invalid score data.
func Assemble(resp models.PlanResponse, opts AssembleOptions) (*StudyPlanResult, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	createdAt := now().UTC()

	complexity, err := scoring.ClassifyComplexity(resp.ProtocolComplexityScore)
	if err != nil {
		return nil, err
	}
	if resp.EstimatedTotalCohortSize < 0 {
		return nil, &scoring.InvalidScoreError{Field: "estimated_total_cohort_size", Value: float64(resp.EstimatedTotalCohortSize)}
	}

	ranked, err := scoring.Rank(candidates(resp.RecommendedSites))
	if err != nil {
		return nil, err
	}

	result := &StudyPlanResult{
		StudyID:                   resp.StudyID,
		ProtocolComplexityScore:   resp.ProtocolComplexityScore,
		Complexity:                complexity,
		EstimatedTotalCohortSize:  resp.EstimatedTotalCohortSize,
		RiskFactors:               passThrough(resp.RiskFactors),
		OptimizationOpportunities: passThrough(resp.OptimizationOpportunities),
		RankedSites:               ranked,
		DataSources:               resp.DataSources,
		CreatedAt:                 createdAt,
	}
	if result.StudyID == "" {
		result.StudyID = studyIDPrefix + createdAt.Format(studyIDTimeLayout)
	}
	if opts.Submission != nil {
		result.Timeline = estimateTimeline(opts.Submission.StudyDurationMonths())
	}
	return result, nil
}

func candidates(sites []models.UpstreamSite) []scoring.SiteCandidate {
	out := make([]scoring.SiteCandidate, len(sites))
	for i, s := range sites {
		out[i] = scoring.SiteCandidate{
			SiteID:           s.SiteID,
			SiteName:         s.SiteName,
			Country:          s.Country,
			Feasibility:      s.FeasibilityScore,
			Diversity:        s.DiversityScore,
			DataAvailability: s.DataAvailabilityScore,
			Strengths:        s.Strengths,
			Challenges:       s.Challenges,
		}
	}
	return out
}

// AdvisoryRankMismatches lists site ids whose upstream rank differs from
// the recomputed one.
func AdvisoryRankMismatches(resp models.PlanResponse, result *StudyPlanResult) []string {
	recomputed := make(map[string]int, len(result.RankedSites))
	for _, s := range result.RankedSites {
		recomputed[s.SiteID] = s.OverallRank
	}
	var mismatched []string
	for _, s := range resp.RecommendedSites {
		if s.OverallRank != 0 && recomputed[s.SiteID] != s.OverallRank {
			mismatched = append(mismatched, s.SiteID)
		}
	}
	return mismatched
}

func estimateTimeline(durationMonths int) *TimelineEstimate {
	return &TimelineEstimate{
		StartupMonths:    startupMonths,
		EnrollmentMonths: durationMonths,
		TotalMonths:      durationMonths + startupMonths + closeoutMonths,
	}
}

func passThrough(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
