package health

import (
	"sort"
	"time"
)

// Status is the outcome of one dependency probe within a cycle.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusHealthy     Status = "healthy"
	StatusUnhealthy   Status = "unhealthy"
	StatusUnreachable Status = "unreachable"
)

// severity orders statuses from least to most severe.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 1
	case StatusUnhealthy:
		return 2
	case StatusUnreachable:
		return 3
	default:
		return 0
	}
}

// Worse returns the more severe of s and other.
func (s Status) Worse(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// ProbeResult is a single dependency's outcome.
type ProbeResult struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Status      Status        `json:"status"`
	StatusCode  int           `json:"status_code,omitempty"`
	Latency     time.Duration `json:"-"`
	LatencyMs   int64         `json:"latency_ms"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
}

// Snapshot is the result of one health cycle. Services holds only the
// dependencies probed in this cycle.
type Snapshot struct {
	CheckedAt time.Time         `json:"checked_at"`
	Services  map[string]Status `json:"services"`
	Results   []ProbeResult     `json:"results"`

	// Ticket orders cycles run through a Monitor; zero when none was issued.
	Ticket uint64 `json:"-"`
}

// Overall is the most severe status observed, ordered unknown < healthy <
// unhealthy < unreachable. It is healthy only when every dependency is; a
// mix of healthy and unknown is unknown. An empty snapshot is unknown.
func (s Snapshot) Overall() Status {
	overall := StatusUnknown
	sawUnknown := false
	for _, st := range s.Services {
		if st.severity() == 0 {
			sawUnknown = true
		}
		overall = overall.Worse(st)
	}
	if overall == StatusHealthy && sawUnknown {
		return StatusUnknown
	}
	return overall
}

// Counts tallies dependencies per status.
func (s Snapshot) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, st := range s.Services {
		counts[st]++
	}
	return counts
}

func newSnapshot(checkedAt time.Time, results map[string]ProbeResult) Snapshot {
	snap := Snapshot{
		CheckedAt: checkedAt,
		Services:  make(map[string]Status, len(results)),
		Results:   make([]ProbeResult, 0, len(results)),
	}
	for name, r := range results {
		snap.Services[name] = r.Status
		snap.Results = append(snap.Results, r)
	}
	sort.Slice(snap.Results, func(i, j int) bool {
		return snap.Results[i].Name < snap.Results[j].Name
	})
	return snap
}
