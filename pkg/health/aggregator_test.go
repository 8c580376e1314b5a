package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func statusHandler(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(code)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func hangingHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func TestCheckWithHungDependency(t *testing.T) {
	healthy := newServer(t, statusHandler(http.StatusOK))
	failing := newServer(t, statusHandler(http.StatusInternalServerError))
	hung := newServer(t, hangingHandler)

	catalog := config.Catalog{Dependencies: []config.Dependency{
		{Name: "protocol_scorer", DisplayName: "Protocol Scorer", URL: healthy.URL},
		{Name: "diversity_mapper", URL: failing.URL},
		{Name: "soa_comparator", URL: hung.URL},
	}}

	agg := NewAggregator(catalog, NewHTTPProber(nil),
		WithProbeTimeout(5*time.Second),
		WithCycleTimeout(300*time.Millisecond),
	)

	start := time.Now()
	snap := agg.Check(context.Background())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("cycle took %v, expected to finish near the cycle timeout", elapsed)
	}
	want := map[string]Status{
		"protocol_scorer":  StatusHealthy,
		"diversity_mapper": StatusUnhealthy,
		"soa_comparator":   StatusUnreachable,
	}
	if len(snap.Services) != len(want) {
		t.Fatalf("expected %d services, got %v", len(want), snap.Services)
	}
	for name, st := range want {
		if snap.Services[name] != st {
			t.Errorf("%s: got %s, want %s", name, snap.Services[name], st)
		}
	}
	if snap.Overall() != StatusUnreachable {
		t.Errorf("overall: got %s, want unreachable", snap.Overall())
	}
	if snap.Results[0].Name != "diversity_mapper" {
		t.Errorf("expected results sorted by name, got %s first", snap.Results[0].Name)
	}
}

func TestCheckProbeIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	prober := ProberFunc(func(ctx context.Context, dep config.Dependency) ProbeResult {
		if dep.Name == "stuck" {
			<-release
		}
		return ProbeResult{Status: StatusHealthy}
	})

	catalog := config.Catalog{Dependencies: []config.Dependency{
		{Name: "a", URL: "http://a"},
		{Name: "stuck", URL: "http://stuck"},
		{Name: "b", URL: "http://b"},
	}}
	agg := NewAggregator(catalog, prober, WithCycleTimeout(100*time.Millisecond))

	snap := agg.Check(context.Background())
	if snap.Services["a"] != StatusHealthy || snap.Services["b"] != StatusHealthy {
		t.Fatalf("expected a and b healthy, got %v", snap.Services)
	}
	if snap.Services["stuck"] != StatusUnreachable {
		t.Fatalf("expected stuck unreachable, got %s", snap.Services["stuck"])
	}
}

func TestCheckUnreachableOnConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(statusHandler(http.StatusOK))
	url := srv.URL
	srv.Close()

	agg := NewAggregator(config.Catalog{Dependencies: []config.Dependency{{Name: "ehr_connector", URL: url}}}, NewHTTPProber(nil))
	snap := agg.Check(context.Background())
	if snap.Services["ehr_connector"] != StatusUnreachable {
		t.Fatalf("expected unreachable, got %s", snap.Services["ehr_connector"])
	}
	if snap.Results[0].Error == "" {
		t.Fatal("expected probe error to be recorded")
	}
}

func TestCheckRecoversProbePanic(t *testing.T) {
	prober := ProberFunc(func(ctx context.Context, dep config.Dependency) ProbeResult {
		panic("boom")
	})
	agg := NewAggregator(config.Catalog{Dependencies: []config.Dependency{{Name: "x", URL: "http://x"}}}, prober)
	snap := agg.Check(context.Background())
	if snap.Services["x"] != StatusUnreachable {
		t.Fatalf("expected unreachable, got %s", snap.Services["x"])
	}
}

func TestCheckEmptyCatalog(t *testing.T) {
	agg := NewAggregator(config.Catalog{}, NewHTTPProber(nil))
	snap := agg.Check(context.Background())
	if len(snap.Services) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Services)
	}
	if snap.Overall() != StatusUnknown {
		t.Fatalf("expected unknown overall, got %s", snap.Overall())
	}
}

func TestSetCatalogSwapsDependencies(t *testing.T) {
	prober := ProberFunc(func(ctx context.Context, dep config.Dependency) ProbeResult {
		return ProbeResult{Status: StatusHealthy}
	})
	agg := NewAggregator(config.Catalog{Dependencies: []config.Dependency{{Name: "old", URL: "http://old"}}}, prober)
	agg.SetCatalog(config.Catalog{Dependencies: []config.Dependency{
		{Name: "new", URL: "http://new"},
		{Name: "new", URL: "http://dup"},
	}})

	snap := agg.Check(context.Background())
	if _, ok := snap.Services["old"]; ok {
		t.Fatal("expected previous cycle dependencies to be dropped")
	}
	if len(snap.Services) != 1 || snap.Services["new"] != StatusHealthy {
		t.Fatalf("unexpected services %v", snap.Services)
	}
}

func TestOverallSeverityOrder(t *testing.T) {
	tests := []struct {
		services map[string]Status
		want     Status
	}{
		{map[string]Status{"a": StatusHealthy, "b": StatusHealthy}, StatusHealthy},
		{map[string]Status{"a": StatusHealthy, "b": StatusUnhealthy}, StatusUnhealthy},
		{map[string]Status{"a": StatusUnhealthy, "b": StatusUnreachable}, StatusUnreachable},
		{map[string]Status{"a": StatusUnknown, "b": StatusHealthy}, StatusUnknown},
		{map[string]Status{"a": StatusUnknown, "b": StatusUnhealthy}, StatusUnhealthy},
		{map[string]Status{"a": StatusUnknown}, StatusUnknown},
		{map[string]Status{}, StatusUnknown},
	}
	for _, tt := range tests {
		if got := (Snapshot{Services: tt.services}).Overall(); got != tt.want {
			t.Errorf("Overall(%v) = %s, want %s", tt.services, got, tt.want)
		}
	}
}
