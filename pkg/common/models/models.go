package models

import (
	"time"
)

// Planning service request, mirrors POST /plan_rwe_study.
type PlanRequest struct {
	ProtocolText        string   `json:"protocol_text"`
	DiseaseArea         string   `json:"disease_area"`
	TargetCountries     []string `json:"target_countries"`
	TargetEnrollment    int      `json:"target_enrollment"`
	InclusionCriteria   []string `json:"inclusion_criteria"`
	ExclusionCriteria   []string `json:"exclusion_criteria"`
	StudyDurationMonths int      `json:"study_duration_months"`
	PrimaryEndpoints    []string `json:"primary_endpoints"`
	SecondaryEndpoints  []string `json:"secondary_endpoints"`
}

// UpstreamSite is a site as reported by the planning service. OverallRank
// is advisory only.
type UpstreamSite struct {
	SiteID                string   `json:"site_id"`
	SiteName              string   `json:"site_name"`
	Country               string   `json:"country"`
	FeasibilityScore      float64  `json:"feasibility_score"`
	DiversityScore        float64  `json:"diversity_score"`
	DataAvailabilityScore float64  `json:"data_availability_score"`
	OverallRank           int      `json:"overall_rank"`
	Strengths             []string `json:"strengths"`
	Challenges            []string `json:"challenges"`
}

// PlanResponse is the planning service's 200 body.
type PlanResponse struct {
	StudyID                   string                   `json:"study_id,omitempty"`
	ProtocolComplexityScore   float64                  `json:"protocol_complexity_score"`
	EstimatedTotalCohortSize  int                      `json:"estimated_total_cohort_size"`
	RiskFactors               []string                 `json:"risk_factors"`
	OptimizationOpportunities []string                 `json:"optimization_opportunities"`
	RecommendedSites          []UpstreamSite           `json:"recommended_sites"`
	DataSources               []map[string]interface{} `json:"data_sources,omitempty"`
}

// ErrorResponse is the planning service's 4xx/5xx body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type QuickAssessmentRequest struct {
	ProtocolText            string   `json:"protocol_text,omitempty"`
	ProtocolComplexityScore *float64 `json:"protocol_complexity_score,omitempty"`
}

// UpstreamQuickAssessment is the planning service's quick assessment body.
type UpstreamQuickAssessment struct {
	Assessment string `json:"assessment"`
	Complexity struct {
		OverallScore    float64  `json:"overall_score"`
		Warnings        []string `json:"warnings"`
		Recommendations []string `json:"recommendations"`
	} `json:"complexity"`
	Recommendation string `json:"recommendation"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // plan.completed, plan.failed, health.snapshot
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventPlanCompleted  = "plan.completed"
	EventPlanFailed     = "plan.failed"
	EventHealthSnapshot = "health.snapshot"
)
