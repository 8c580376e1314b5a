package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
)

// Prober checks one dependency. Implementations must honour ctx and
// report failures through the returned result, never by panicking.
type Prober interface {
	Probe(ctx context.Context, dep config.Dependency) ProbeResult
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, dep config.Dependency) ProbeResult

func (f ProberFunc) Probe(ctx context.Context, dep config.Dependency) ProbeResult {
	return f(ctx, dep)
}

// HTTPProber issues GET <url><health_path>. A 200 answer is healthy, any
// other answer unhealthy, and no answer unreachable.
type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{Client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, dep config.Dependency) ProbeResult {
	start := time.Now()
	result := ProbeResult{Name: dep.Name, DisplayName: displayName(dep)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dep.HealthURL(), nil)
	if err != nil {
		return unreachable(result, start, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return unreachable(result, start, fmt.Errorf("http get: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	result.StatusCode = resp.StatusCode
	result.Latency = time.Since(start)
	result.LatencyMs = result.Latency.Milliseconds()
	if resp.StatusCode == http.StatusOK {
		result.Status = StatusHealthy
	} else {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

func unreachable(result ProbeResult, start time.Time, err error) ProbeResult {
	result.Status = StatusUnreachable
	result.Err = err
	result.Error = err.Error()
	result.Latency = time.Since(start)
	result.LatencyMs = result.Latency.Milliseconds()
	return result
}

func displayName(dep config.Dependency) string {
	if dep.DisplayName != "" {
		return dep.DisplayName
	}
	return dep.Name
}
