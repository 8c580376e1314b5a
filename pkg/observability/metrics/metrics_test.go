package metrics

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func parse(t *testing.T, body []byte) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

func valueWithLabel(mf *dto.MetricFamily, name, value string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				if m.Counter != nil {
					return m.Counter.GetValue(), true
				}
				return m.Gauge.GetValue(), true
			}
		}
	}
	return 0, false
}

func TestWritePrometheusCounters(t *testing.T) {
	Reset()
	ObservePlan(OutcomeSuccess)
	ObservePlan(OutcomeSuccess)
	ObservePlan(OutcomeUpstream)
	ObserveUpstreamFailure(0)

	var buf bytes.Buffer
	if err := WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	mfs := parse(t, buf.Bytes())

	plans := mfs["rwe_planner_plans_total"]
	if plans == nil {
		t.Fatalf("missing plans family in:\n%s", buf.String())
	}
	if v, ok := valueWithLabel(plans, "outcome", OutcomeSuccess); !ok || v != 2 {
		t.Fatalf("expected 2 successful plans, got %v (found=%v)", v, ok)
	}
	if v, ok := valueWithLabel(mfs["rwe_planner_upstream_failures_total"], "status", "0"); !ok || v != 1 {
		t.Fatalf("expected one transport failure, got %v", v)
	}
	if _, ok := mfs["rwe_planner_dependency_status"]; ok {
		t.Fatalf("dependency status must be absent before any health cycle")
	}
}

func TestHealthCycleGauges(t *testing.T) {
	Reset()
	ObserveHealthCycle(1500*time.Millisecond, map[string]string{"ehr_connector": "healthy", "soa_generator": "unreachable"}, "unreachable")
	ObserveHealthCycle(20*time.Millisecond, map[string]string{"ehr_connector": "unhealthy"}, "unhealthy")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	mfs := parse(t, rec.Body.Bytes())

	if got := mfs["rwe_planner_health_cycles_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 cycles, got %v", got)
	}
	deps := mfs["rwe_planner_dependency_status"]
	if len(deps.GetMetric()) != 4 {
		t.Fatalf("expected stale dependencies to be dropped, got %d series", len(deps.GetMetric()))
	}
	for _, m := range deps.GetMetric() {
		var status string
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status" {
				status = lp.GetValue()
			}
		}
		want := 0.0
		if status == "unhealthy" {
			want = 1
		}
		if m.GetGauge().GetValue() != want {
			t.Fatalf("status %s: expected %v, got %v", status, want, m.GetGauge().GetValue())
		}
	}
	if v, _ := valueWithLabel(mfs["rwe_planner_overall_status"], "status", "unhealthy"); v != 1 {
		t.Fatalf("expected overall unhealthy")
	}
}
