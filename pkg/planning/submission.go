package planning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
)

const (
	MinTargetEnrollment    = 10
	MinStudyDurationMonths = 1
)

var (
	ErrSubmissionFrozen = errors.New("study submission already submitted")

	errMissingProtocol  = errors.New("protocol text required")
	errMissingDisease   = errors.New("disease area required")
	errMissingCountries = errors.New("at least one target country required")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// StudySubmission describes a study to plan. Build it with the setters;
// once Submit succeeds it is frozen.
type StudySubmission struct {
	protocolText        string
	diseaseArea         string
	targetCountries     []string
	targetEnrollment    int
	studyDurationMonths int
	inclusionCriteria   []string
	exclusionCriteria   []string
	primaryEndpoints    []string
	secondaryEndpoints  []string
	submitted           bool
}

// NewStudySubmission starts a submission with the form defaults
// (enrollment 100, 12 months).
func NewStudySubmission() *StudySubmission {
	return &StudySubmission{targetEnrollment: 100, studyDurationMonths: 12}
}

// FromRequest builds an unsubmitted submission from a wire request.
func FromRequest(req models.PlanRequest) *StudySubmission {
	s := NewStudySubmission()
	_ = s.SetProtocolText(req.ProtocolText)
	_ = s.SetDiseaseArea(req.DiseaseArea)
	_ = s.SetTargetCountries(req.TargetCountries)
	_ = s.SetTargetEnrollment(req.TargetEnrollment)
	_ = s.SetStudyDurationMonths(req.StudyDurationMonths)
	_ = s.SetInclusionCriteria(req.InclusionCriteria)
	_ = s.SetExclusionCriteria(req.ExclusionCriteria)
	_ = s.SetPrimaryEndpoints(req.PrimaryEndpoints)
	_ = s.SetSecondaryEndpoints(req.SecondaryEndpoints)
	return s
}

func (s *StudySubmission) mutate(fn func()) error {
	if s.submitted {
		return ErrSubmissionFrozen
	}
	fn()
	return nil
}

func (s *StudySubmission) SetProtocolText(v string) error {
	return s.mutate(func() { s.protocolText = v })
}

func (s *StudySubmission) SetDiseaseArea(v string) error {
	return s.mutate(func() { s.diseaseArea = strings.TrimSpace(v) })
}

func (s *StudySubmission) SetTargetCountries(v []string) error {
	return s.mutate(func() { s.targetCountries = cleanItems(v) })
}

func (s *StudySubmission) SetTargetEnrollment(v int) error {
	return s.mutate(func() { s.targetEnrollment = v })
}

func (s *StudySubmission) SetStudyDurationMonths(v int) error {
	return s.mutate(func() { s.studyDurationMonths = v })
}

func (s *StudySubmission) SetInclusionCriteria(v []string) error {
	return s.mutate(func() { s.inclusionCriteria = cleanItems(v) })
}

func (s *StudySubmission) SetExclusionCriteria(v []string) error {
	return s.mutate(func() { s.exclusionCriteria = cleanItems(v) })
}

func (s *StudySubmission) SetPrimaryEndpoints(v []string) error {
	return s.mutate(func() { s.primaryEndpoints = cleanItems(v) })
}

func (s *StudySubmission) SetSecondaryEndpoints(v []string) error {
	return s.mutate(func() { s.secondaryEndpoints = cleanItems(v) })
}

// SetTargetCountriesFromLines accepts one country per line.
func (s *StudySubmission) SetTargetCountriesFromLines(text string) error {
	return s.SetTargetCountries(SplitLines(text))
}

func (s *StudySubmission) SetInclusionCriteriaFromLines(text string) error {
	return s.SetInclusionCriteria(SplitLines(text))
}

func (s *StudySubmission) SetExclusionCriteriaFromLines(text string) error {
	return s.SetExclusionCriteria(SplitLines(text))
}

func (s *StudySubmission) SetPrimaryEndpointsFromLines(text string) error {
	return s.SetPrimaryEndpoints(SplitLines(text))
}

func (s *StudySubmission) SetSecondaryEndpointsFromLines(text string) error {
	return s.SetSecondaryEndpoints(SplitLines(text))
}

func (s *StudySubmission) DiseaseArea() string      { return s.diseaseArea }
func (s *StudySubmission) TargetEnrollment() int    { return s.targetEnrollment }
func (s *StudySubmission) StudyDurationMonths() int { return s.studyDurationMonths }
func (s *StudySubmission) Submitted() bool          { return s.submitted }

func (s *StudySubmission) TargetCountries() []string {
	return append([]string(nil), s.targetCountries...)
}

func (s *StudySubmission) Validate() error {
	if strings.TrimSpace(s.protocolText) == "" {
		return ValidationError{reason: errMissingProtocol}
	}
	if s.diseaseArea == "" {
		return ValidationError{reason: errMissingDisease}
	}
	if len(s.targetCountries) == 0 {
		return ValidationError{reason: errMissingCountries}
	}
	if s.targetEnrollment < MinTargetEnrollment {
		return ValidationError{reason: fmt.Errorf("target enrollment must be at least %d, got %d", MinTargetEnrollment, s.targetEnrollment)}
	}
	if s.studyDurationMonths < MinStudyDurationMonths {
		return ValidationError{reason: fmt.Errorf("study duration must be at least %d month, got %d", MinStudyDurationMonths, s.studyDurationMonths)}
	}
	return nil
}

// Submit validates and freezes the submission. Submitting twice is
// rejected.
func (s *StudySubmission) Submit() error {
	if s.submitted {
		return ErrSubmissionFrozen
	}
	if err := s.Validate(); err != nil {
		return err
	}
	s.submitted = true
	return nil
}

// Request is the wire form sent to the planning service. Empty lists are
// sent as [] rather than null.
func (s *StudySubmission) Request() models.PlanRequest {
	return models.PlanRequest{
		ProtocolText:        s.protocolText,
		DiseaseArea:         s.diseaseArea,
		TargetCountries:     copyItems(s.targetCountries),
		TargetEnrollment:    s.targetEnrollment,
		InclusionCriteria:   copyItems(s.inclusionCriteria),
		ExclusionCriteria:   copyItems(s.exclusionCriteria),
		StudyDurationMonths: s.studyDurationMonths,
		PrimaryEndpoints:    copyItems(s.primaryEndpoints),
		SecondaryEndpoints:  copyItems(s.secondaryEndpoints),
	}
}

// SplitLines splits text on newlines and drops blank lines.
func SplitLines(text string) []string {
	return cleanItems(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}

func cleanItems(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func copyItems(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
