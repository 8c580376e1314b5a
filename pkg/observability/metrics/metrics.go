package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

const namespace = "rwe_planner"

// Plan outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid_submission"
	OutcomeUpstream     = "upstream_error"
	OutcomeInvalidScore = "invalid_score"
)

var (
	mu sync.Mutex

	plans            = map[string]float64{}
	upstreamFailures = map[int]float64{}
	healthCycles     float64
	cycleSeconds     float64
	dependencyStatus = map[string]string{}
	overallStatus    string
)

// Statuses in the order they are exported for rwe_planner_dependency_status.
var statuses = []string{"unknown", "healthy", "unhealthy", "unreachable"}

func ObservePlan(outcome string) {
	mu.Lock()
	defer mu.Unlock()
	plans[outcome]++
}

// ObserveUpstreamFailure counts a failed planning call. status is 0 when
// no response was received.
func ObserveUpstreamFailure(status int) {
	mu.Lock()
	defer mu.Unlock()
	upstreamFailures[status]++
}

// ObserveHealthCycle records one aggregation cycle and the per-dependency
// status it produced.
func ObserveHealthCycle(elapsed time.Duration, services map[string]string, overall string) {
	mu.Lock()
	defer mu.Unlock()
	healthCycles++
	cycleSeconds = elapsed.Seconds()
	dependencyStatus = make(map[string]string, len(services))
	for name, status := range services {
		dependencyStatus[name] = status
	}
	overallStatus = overall
}

// Reset clears all collected values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	plans = map[string]float64{}
	upstreamFailures = map[int]float64{}
	healthCycles = 0
	cycleSeconds = 0
	dependencyStatus = map[string]string{}
	overallStatus = ""
}

// Gather snapshots the current values as metric families, sorted by name.
func Gather() []*dto.MetricFamily {
	mu.Lock()
	defer mu.Unlock()

	var families []*dto.MetricFamily

	planFamily := family("plans_total", "Study plans requested, by outcome.", dto.MetricType_COUNTER)
	for _, outcome := range sortedKeys(plans) {
		planFamily.Metric = append(planFamily.Metric, counter(plans[outcome], "outcome", outcome))
	}
	families = append(families, planFamily)

	upstreamFamily := family("upstream_failures_total", "Failed planning service calls, by HTTP status (0 for transport errors).", dto.MetricType_COUNTER)
	codes := make([]int, 0, len(upstreamFailures))
	for code := range upstreamFailures {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		upstreamFamily.Metric = append(upstreamFamily.Metric, counter(upstreamFailures[code], "status", strconv.Itoa(code)))
	}
	families = append(families, upstreamFamily)

	cycles := family("health_cycles_total", "Completed dependency health cycles.", dto.MetricType_COUNTER)
	cycles.Metric = append(cycles.Metric, counter(healthCycles))
	families = append(families, cycles)

	duration := family("health_cycle_duration_seconds", "Duration of the latest dependency health cycle.", dto.MetricType_GAUGE)
	duration.Metric = append(duration.Metric, gauge(cycleSeconds))
	families = append(families, duration)

	deps := family("dependency_status", "Latest status per dependency; 1 for the active status.", dto.MetricType_GAUGE)
	for _, name := range sortedKeys(dependencyStatus) {
		for _, status := range statuses {
			v := 0.0
			if dependencyStatus[name] == status {
				v = 1
			}
			deps.Metric = append(deps.Metric, gauge(v, "dependency", name, "status", status))
		}
	}
	families = append(families, deps)

	overall := family("overall_status", "Aggregated health across dependencies; 1 for the active status.", dto.MetricType_GAUGE)
	if overallStatus != "" {
		for _, status := range statuses {
			v := 0.0
			if overallStatus == status {
				v = 1
			}
			overall.Metric = append(overall.Metric, gauge(v, "status", status))
		}
	}
	families = append(families, overall)

	return families
}

func WritePrometheus(w io.Writer) error {
	for _, mf := range Gather() {
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := WritePrometheus(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + "_" + name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
}

func counter(v float64, labels ...string) *dto.Metric {
	return &dto.Metric{Label: labelPairs(labels), Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func gauge(v float64, labels ...string) *dto.Metric {
	return &dto.Metric{Label: labelPairs(labels), Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func labelPairs(kv []string) []*dto.LabelPair {
	pairs := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, &dto.LabelPair{Name: proto.String(kv[i]), Value: proto.String(kv[i+1])})
	}
	return pairs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
