package planning

import (
	"context"
	"errors"
	"time"

	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/scoring"
)

const eventSource = "rwe-planner"

var errQuickAssessmentInput = errors.New("protocol_complexity_score or protocol_text required")

// Planner is the upstream planning backend.
type Planner interface {
	Plan(ctx context.Context, req models.PlanRequest) (*models.PlanResponse, error)
	QuickAssess(ctx context.Context, protocolText string) (*models.UpstreamQuickAssessment, error)
}

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// PlanStore is satisfied by Repository.
type PlanStore interface {
	Save(ctx context.Context, rec *PlanRecord) error
}

type Service struct {
	planner   Planner
	publisher EventPublisher
	store     PlanStore
	now       func() time.Time
}

type ServiceOption func(*Service)

// WithPublisher emits plan events for the archiver.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithStore archives plans directly, without going through events.
func WithStore(store PlanStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(planner Planner, opts ...ServiceOption) *Service {
	s := &Service{planner: planner, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan submits sub, then ranks and classifies the planning service's answer.
// Archiving failures are logged, never returned.
func (s *Service) Plan(ctx context.Context, sub *StudySubmission) (*StudyPlanResult, error) {
	if err := sub.Submit(); err != nil {
		return nil, err
	}
	req := sub.Request()

	resp, err := s.planner.Plan(ctx, req)
	if err != nil {
		s.publish(ctx, models.EventPlanFailed, map[string]interface{}{
			"disease_area": req.DiseaseArea,
			"error":        err.Error(),
		})
		return nil, err
	}

	result, err := Assemble(*resp, AssembleOptions{Submission: sub, Now: s.now})
	if err != nil {
		logger.Get().WithError(err).WithField("disease_area", req.DiseaseArea).Error("Planning service returned invalid score data")
		s.publish(ctx, models.EventPlanFailed, map[string]interface{}{
			"disease_area": req.DiseaseArea,
			"error":        err.Error(),
		})
		return nil, err
	}

	if mismatched := AdvisoryRankMismatches(*resp, result); len(mismatched) > 0 {
		logger.WithFields(map[string]interface{}{
			"study_id": result.StudyID,
			"sites":    mismatched,
		}).Debug("Upstream site ranks disagree with recomputed ranking")
	}

	s.archive(ctx, req, result)

	logger.WithFields(map[string]interface{}{
		"study_id":   result.StudyID,
		"complexity": result.Complexity.Label,
		"sites":      len(result.RankedSites),
	}).Info("Study plan assembled")
	return result, nil
}

// QuickAssess classifies a supplied complexity score locally, or asks the
// planning service to score the protocol text first.
func (s *Service) QuickAssess(ctx context.Context, req models.QuickAssessmentRequest) (*QuickAssessmentResult, error) {
	if req.ProtocolComplexityScore != nil {
		result, err := QuickAssessment(*req.ProtocolComplexityScore)
		if scoring.IsInvalidScore(err) {
			return nil, ValidationError{reason: err}
		}
		return result, err
	}
	if req.ProtocolText == "" {
		return nil, ValidationError{reason: errQuickAssessmentInput}
	}

	upstream, err := s.planner.QuickAssess(ctx, req.ProtocolText)
	if err != nil {
		return nil, err
	}
	result, err := QuickAssessment(upstream.Complexity.OverallScore)
	if err != nil {
		return nil, err
	}
	result.Warnings = passThrough(upstream.Complexity.Warnings)
	result.Recommendations = passThrough(upstream.Complexity.Recommendations)
	return result, nil
}

func (s *Service) archive(ctx context.Context, req models.PlanRequest, result *StudyPlanResult) {
	if s.publisher == nil && s.store == nil {
		return
	}
	rec, err := NewPlanRecord(req, result)
	if err != nil {
		logger.Get().WithError(err).WithField("study_id", result.StudyID).Error("Failed to build plan record")
		return
	}
	if s.store != nil {
		if err := s.store.Save(ctx, rec); err != nil {
			logger.Get().WithError(err).WithField("study_id", result.StudyID).Error("Failed to archive plan")
		}
	}
	s.publish(ctx, models.EventPlanCompleted, rec.EventData())
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Get().WithError(err).WithField("event_type", eventType).Warn("Failed to publish plan event")
	}
}

// IsDataIntegrityError reports failures caused by inconsistent upstream
// score data.
func IsDataIntegrityError(err error) bool {
	return scoring.IsInvalidScore(err) || errors.Is(err, scoring.ErrDuplicateSite)
}
