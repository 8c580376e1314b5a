package health

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/gateway/httpclient"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultCycleTimeout = 8 * time.Second
)

var errCycleTimeout = errors.New("health cycle deadline reached before probe completed")

// Aggregator runs health cycles against a configured dependency set.
type Aggregator struct {
	prober       Prober
	probeTimeout time.Duration
	cycleTimeout time.Duration
	catalog      atomic.Pointer[config.Catalog]
}

type Option func(*Aggregator)

func WithProbeTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.probeTimeout = d
		}
	}
}

func WithCycleTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.cycleTimeout = d
		}
	}
}

func NewAggregator(catalog config.Catalog, prober Prober, opts ...Option) *Aggregator {
	a := &Aggregator{
		prober:       prober,
		probeTimeout: DefaultProbeTimeout,
		cycleTimeout: DefaultCycleTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.SetCatalog(catalog)
	return a
}

// SetCatalog replaces the dependency set. Cycles already running keep the
// set they started with. Repeated names keep their first entry.
func (a *Aggregator) SetCatalog(catalog config.Catalog) {
	deps := make([]config.Dependency, 0, len(catalog.Dependencies))
	seen := make(map[string]struct{}, len(catalog.Dependencies))
	for _, dep := range catalog.Dependencies {
		if _, dup := seen[dep.Name]; dup {
			continue
		}
		seen[dep.Name] = struct{}{}
		deps = append(deps, dep)
	}
	a.catalog.Store(&config.Catalog{Dependencies: deps})
}

func (a *Aggregator) Catalog() config.Catalog {
	return *a.catalog.Load()
}

// Check probes every dependency concurrently and returns once all probes
// finish or the cycle timeout fires. Probes still outstanding at that
// point are reported unreachable. Check never fails.
func (a *Aggregator) Check(ctx context.Context) Snapshot {
	started := time.Now().UTC()
	deps := a.Catalog().Dependencies

	cycleCtx, cancel := context.WithTimeout(ctx, a.cycleTimeout)
	defer cancel()

	// Buffered so a probe finishing after the deadline never blocks.
	out := make(chan ProbeResult, len(deps))
	for _, dep := range deps {
		go a.run(cycleCtx, dep, out)
	}

	results := make(map[string]ProbeResult, len(deps))
collect:
	for len(results) < len(deps) {
		select {
		case r := <-out:
			results[r.Name] = r
		case <-cycleCtx.Done():
			break collect
		}
	}

	for _, dep := range deps {
		if _, ok := results[dep.Name]; ok {
			continue
		}
		err := errCycleTimeout
		if ctx.Err() != nil {
			err = fmt.Errorf("health cycle cancelled: %w", ctx.Err())
		}
		r := unreachable(ProbeResult{Name: dep.Name, DisplayName: displayName(dep)}, started, err)
		logProbeFailure(r)
		results[dep.Name] = r
	}

	snap := newSnapshot(started, results)
	logger.WithFields(map[string]interface{}{
		"dependencies": len(deps),
		"overall":      snap.Overall(),
		"duration_ms":  time.Since(started).Milliseconds(),
	}).Debug("Health cycle completed")
	return snap
}

func (a *Aggregator) run(ctx context.Context, dep config.Dependency, out chan<- ProbeResult) {
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	var r ProbeResult
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r = unreachable(ProbeResult{Name: dep.Name, DisplayName: displayName(dep)}, time.Now(), fmt.Errorf("probe panic: %v", rec))
			}
		}()
		r = a.prober.Probe(probeCtx, dep)
	}()

	// The result is keyed by the configured name regardless of what the
	// prober filled in.
	r.Name = dep.Name
	if r.DisplayName == "" {
		r.DisplayName = displayName(dep)
	}
	if r.Status == "" {
		r.Status = StatusUnknown
	}
	if r.Status == StatusUnreachable || r.Status == StatusUnhealthy {
		logProbeFailure(r)
	}
	out <- r
}

func logProbeFailure(r ProbeResult) {
	logger.WithFields(map[string]interface{}{
		"dependency": r.Name,
		"status":     r.Status,
		"latency_ms": r.LatencyMs,
		"error":      r.Error,
	}).Warn("Dependency probe failed")
}

// AggregatorFromConfig loads DEPENDENCY_CATALOG (or the built-in catalog)
// and applies the configured timeouts.
func AggregatorFromConfig(cfg *config.Config) (*Aggregator, error) {
	catalog, err := config.LoadCatalog(cfg.DependencyCatalog)
	if err != nil {
		return nil, fmt.Errorf("load dependency catalog: %w", err)
	}
	prober := NewHTTPProber(httpclient.New(cfg.HealthProbeTimeout))
	return NewAggregator(catalog, prober,
		WithProbeTimeout(cfg.HealthProbeTimeout),
		WithCycleTimeout(cfg.HealthCycleTimeout),
	), nil
}
