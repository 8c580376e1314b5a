package health

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
)

const (
	monitorSlot  = "service_status"
	eventSource  = "rwe-planner"
	defaultSched = "@every 1m"
)

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Monitor runs health cycles on demand or on a cron schedule and keeps the
// newest snapshot. A cycle that finishes after a newer one was started is
// returned to its caller but neither stored nor published.
type Monitor struct {
	agg       *Aggregator
	latest    *planning.Slot[Snapshot]
	publisher EventPublisher
	cron      *cron.Cron
}

type monitorOptions struct {
	replica string
}

type MonitorOption func(*monitorOptions)

// WithReplica scopes the monitor's ticket slot to one process. Replicas
// sharing a RedisSequencer each probe and publish on their own, so their
// cycles must not supersede each other.
func WithReplica(id string) MonitorOption {
	return func(o *monitorOptions) {
		o.replica = id
	}
}

func NewMonitor(agg *Aggregator, seq planning.Sequencer, publisher EventPublisher, opts ...MonitorOption) *Monitor {
	var o monitorOptions
	for _, opt := range opts {
		opt(&o)
	}
	if seq == nil {
		seq = planning.NewMemorySequencer()
	}
	slot := monitorSlot
	if o.replica != "" {
		slot += ":" + o.replica
	}
	return &Monitor{
		agg:       agg,
		latest:    planning.NewSlot[Snapshot](slot, seq),
		publisher: publisher,
	}
}

// RunCycle probes every dependency once. accepted reports whether the
// snapshot became the latest one. The probes always run: a sequencer
// failure only means the snapshot is not accepted, and it is reported in
// err alongside the real snapshot.
func (m *Monitor) RunCycle(ctx context.Context) (snap Snapshot, accepted bool, err error) {
	ticket, issueErr := m.latest.Issue(ctx)

	start := time.Now()
	snap = m.agg.Check(ctx)
	elapsed := time.Since(start)

	if issueErr != nil {
		return snap, false, fmt.Errorf("issue health ticket: %w", issueErr)
	}
	snap.Ticket = ticket

	accepted, err = m.latest.Deliver(ctx, ticket, snap)
	if err != nil {
		return snap, false, fmt.Errorf("deliver health snapshot: %w", err)
	}
	if !accepted {
		logger.WithField("ticket", ticket).Debug("Health snapshot superseded by a newer cycle")
		return snap, false, nil
	}

	services := make(map[string]string, len(snap.Services))
	for name, st := range snap.Services {
		services[name] = string(st)
	}
	metrics.ObserveHealthCycle(elapsed, services, string(snap.Overall()))
	m.publish(ctx, snap)
	return snap, true, nil
}

// Latest returns the newest accepted snapshot.
func (m *Monitor) Latest() (Snapshot, bool) {
	return m.latest.Value()
}

// Schedule registers a recurring cycle. spec uses the robfig/cron syntax,
// including descriptors such as "@every 30s"; empty means every minute.
func (m *Monitor) Schedule(ctx context.Context, spec string) error {
	if spec == "" {
		spec = defaultSched
	}
	if m.cron == nil {
		m.cron = cron.New()
	}
	_, err := m.cron.AddFunc(spec, func() {
		if _, _, err := m.RunCycle(ctx); err != nil {
			logger.Get().WithError(err).Warn("Scheduled health cycle failed")
		}
	})
	if err != nil {
		return fmt.Errorf("add health schedule %q: %w", spec, err)
	}
	return nil
}

func (m *Monitor) Start() {
	if m.cron != nil {
		m.cron.Start()
	}
}

// Stop waits for a running cycle to finish.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

func (m *Monitor) publish(ctx context.Context, snap Snapshot) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishEvent(ctx, models.EventHealthSnapshot, eventSource, SnapshotEventData(snap)); err != nil {
		logger.Get().WithError(err).Warn("Failed to publish health snapshot")
	}
}

// SnapshotEventData is the bus payload for a health snapshot.
func SnapshotEventData(snap Snapshot) map[string]interface{} {
	services := make(map[string]interface{}, len(snap.Services))
	for name, st := range snap.Services {
		services[name] = string(st)
	}
	counts := make(map[string]interface{})
	for st, n := range snap.Counts() {
		counts[string(st)] = n
	}
	return map[string]interface{}{
		"checked_at": snap.CheckedAt.Format(time.RFC3339Nano),
		"overall":    string(snap.Overall()),
		"services":   services,
		"counts":     counts,
	}
}
