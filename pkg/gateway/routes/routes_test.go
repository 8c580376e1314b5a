package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/health"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
)

const validPlan = `{
	"protocol_text": "Observational cohort of adults with type 2 diabetes",
	"disease_area": "diabetes",
	"target_countries": ["USA", "UK"],
	"target_enrollment": 500,
	"inclusion_criteria": ["age >= 18"],
	"exclusion_criteria": [],
	"study_duration_months": 12,
	"primary_endpoints": ["HbA1c change"],
	"secondary_endpoints": []
}`

func upstream(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func planningRouter(baseURL string, history PlanHistory) *mux.Router {
	svc := planning.NewService(planning.NewClient(baseURL, nil))
	r := mux.NewRouter()
	NewPlanningHandler(svc, history, 1<<20).Register(r.PathPrefix("/api/v1").Subrouter())
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestPlanRoute(t *testing.T) {
	srv := upstream(t, http.StatusOK, `{
		"protocol_complexity_score": 7.0,
		"estimated_total_cohort_size": 25000,
		"risk_factors": ["Slow enrollment"],
		"optimization_opportunities": [],
		"recommended_sites": [
			{"site_id": "B", "site_name": "Site B", "country": "UK", "feasibility_score": 7, "diversity_score": 7, "data_availability_score": 7, "overall_rank": 1},
			{"site_id": "A", "site_name": "Site A", "country": "USA", "feasibility_score": 7, "diversity_score": 7, "data_availability_score": 7, "overall_rank": 2}
		]
	}`)

	rec := post(t, planningRouter(srv.URL, nil), "/api/v1/plan_rwe_study", validPlan)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view planning.PlanView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Complexity.Label != "High Complexity" {
		t.Fatalf("unexpected complexity %+v", view.Complexity)
	}
	if len(view.RecommendedSites) != 2 || view.RecommendedSites[0].SiteID != "A" || view.RecommendedSites[0].OverallRank != 1 {
		t.Fatalf("expected recomputed ranking with A first, got %+v", view.RecommendedSites)
	}
	if view.CohortCoveragePercent != 25 {
		t.Fatalf("expected 25%% coverage, got %d", view.CohortCoveragePercent)
	}
	if view.Timeline == nil || view.Timeline.TotalMonths != 18 {
		t.Fatalf("unexpected timeline %+v", view.Timeline)
	}
}

func TestPlanRouteValidation(t *testing.T) {
	rec := post(t, planningRouter("http://127.0.0.1:1", nil), "/api/v1/plan_rwe_study", `{"protocol_text":"x","disease_area":"asthma","target_countries":[],"target_enrollment":100,"study_duration_months":12}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if detailOf(t, rec) == "" {
		t.Fatalf("expected a validation message")
	}

	rec = post(t, planningRouter("http://127.0.0.1:1", nil), "/api/v1/plan_rwe_study", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestPlanRouteUpstreamErrors(t *testing.T) {
	srv := upstream(t, http.StatusInternalServerError, `{"detail": "Feasibility service timeout"}`)
	rec := post(t, planningRouter(srv.URL, nil), "/api/v1/plan_rwe_study", validPlan)
	if rec.Code != http.StatusBadGateway || detailOf(t, rec) != "Feasibility service timeout" {
		t.Fatalf("expected 502 with upstream detail, got %d %s", rec.Code, rec.Body.String())
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	rec = post(t, planningRouter(closed.URL, nil), "/api/v1/plan_rwe_study", validPlan)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for transport failure, got %d", rec.Code)
	}
}

func TestPlanRouteInvalidScore(t *testing.T) {
	srv := upstream(t, http.StatusOK, `{"protocol_complexity_score": 12.5, "recommended_sites": []}`)
	rec := post(t, planningRouter(srv.URL, nil), "/api/v1/plan_rwe_study", validPlan)
	if rec.Code != http.StatusBadGateway || detailOf(t, rec) != invalidScoreDetail {
		t.Fatalf("expected invalid score mapping, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestQuickAssessmentRoute(t *testing.T) {
	rec := post(t, planningRouter("http://127.0.0.1:1", nil), "/api/v1/quick_assessment", `{"protocol_complexity_score": 8.2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res planning.QuickAssessmentResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Recommendation != planning.RecommendSimplify {
		t.Fatalf("unexpected recommendation %q", res.Recommendation)
	}

	rec = post(t, planningRouter("http://127.0.0.1:1", nil), "/api/v1/quick_assessment", `{"protocol_complexity_score": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected out of range score to be rejected, got %d", rec.Code)
	}
}

type stubHistory struct {
	limit int
	err   error
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]planning.PlanRecord, error) {
	s.limit = limit
	return []planning.PlanRecord{{StudyID: "RWE_1"}}, s.err
}

func TestRecentPlansRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	planningRouter("http://127.0.0.1:1", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without history, got %d", rec.Code)
	}

	hist := &stubHistory{}
	rec = httptest.NewRecorder()
	planningRouter("http://127.0.0.1:1", hist).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans?limit=5", nil))
	if rec.Code != http.StatusOK || hist.limit != 5 {
		t.Fatalf("expected 200 with limit 5, got %d limit=%d", rec.Code, hist.limit)
	}

	hist = &stubHistory{err: errors.New("db down")}
	rec = httptest.NewRecorder()
	planningRouter("http://127.0.0.1:1", hist).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans?limit=1000", nil))
	if rec.Code != http.StatusInternalServerError || hist.limit != 20 {
		t.Fatalf("expected 500 with default limit, got %d limit=%d", rec.Code, hist.limit)
	}
}

func TestServiceStatusRoute(t *testing.T) {
	healthy := upstream(t, http.StatusOK, `{}`)
	failing := upstream(t, http.StatusServiceUnavailable, `{}`)
	catalog := config.Catalog{Dependencies: []config.Dependency{
		{Name: "ehr_connector", DisplayName: "EHR Connector", URL: healthy.URL},
		{Name: "claims_parser", URL: failing.URL},
	}}
	mon := health.NewMonitor(health.NewAggregator(catalog, health.NewHTTPProber(nil)), nil, nil)

	r := mux.NewRouter()
	NewStatusHandler(mon).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/service_status", nil))
	var services map[string]health.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if services["ehr_connector"] != health.StatusHealthy || services["claims_parser"] != health.StatusUnhealthy {
		t.Fatalf("unexpected statuses %v", services)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/service_status?detail=true", nil))
	var detail statusDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Overall != health.StatusUnhealthy || len(detail.Services) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Services[1].DisplayName != "EHR Connector" {
		t.Fatalf("expected display names sorted by name, got %+v", detail.Services)
	}
	if detail.Counts[health.StatusHealthy] != 1 {
		t.Fatalf("unexpected counts %v", detail.Counts)
	}
}

type unavailableSequencer struct{}

func (unavailableSequencer) Next(context.Context, string) (uint64, error) {
	return 0, errors.New("dial tcp: connection refused")
}

func (unavailableSequencer) Current(context.Context, string) (uint64, error) {
	return 0, errors.New("dial tcp: connection refused")
}

func TestServiceStatusRouteSurvivesSequencerFailure(t *testing.T) {
	healthy := upstream(t, http.StatusOK, `{}`)
	catalog := config.Catalog{Dependencies: []config.Dependency{
		{Name: "ehr_connector", URL: healthy.URL},
		{Name: "soa_generator", URL: healthy.URL},
	}}
	mon := health.NewMonitor(health.NewAggregator(catalog, health.NewHTTPProber(nil)), unavailableSequencer{}, nil)

	r := mux.NewRouter()
	NewStatusHandler(mon).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/service_status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var services map[string]health.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &services); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(services) != 2 || services["ehr_connector"] != health.StatusHealthy || services["soa_generator"] != health.StatusHealthy {
		t.Fatalf("expected probed statuses, got %s", rec.Body.String())
	}
}

func TestServiceStatusRouteCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	catalog := config.Catalog{Dependencies: []config.Dependency{{Name: "ehr_connector", URL: srv.URL}}}
	mon := health.NewMonitor(health.NewAggregator(catalog, health.NewHTTPProber(nil)), nil, nil)

	r := mux.NewRouter()
	NewStatusHandler(mon).Register(r)

	// Nothing cached yet, so the first request probes.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/service_status?cached=true", nil))
	if rec.Code != http.StatusOK || hits.Load() != 1 {
		t.Fatalf("expected one probe, code=%d hits=%d", rec.Code, hits.Load())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/service_status?cached=true&detail=true", nil))
	if hits.Load() != 1 {
		t.Fatalf("cached request must not probe, hits=%d", hits.Load())
	}
	var detail statusDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Overall != health.StatusHealthy || len(detail.Services) != 1 {
		t.Fatalf("unexpected cached detail %+v", detail)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/service_status", nil))
	if hits.Load() != 2 {
		t.Fatalf("uncached request must probe, hits=%d", hits.Load())
	}
}
