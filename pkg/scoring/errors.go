package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScore marks a score outside [MinScore, MaxScore]. Such data
	// is reported, never clamped.
	ErrInvalidScore = errors.New("invalid score")

	// ErrDuplicateSite marks two candidates sharing a site identifier.
	ErrDuplicateSite = errors.New("duplicate site id")
)

// InvalidScoreError names the offending field and value.
type InvalidScoreError struct {
	Field  string
	SiteID string
	Value  float64
}

func (e *InvalidScoreError) Error() string {
	if e.SiteID != "" {
		return fmt.Sprintf("invalid score: %s of site %q is %v, want [%g, %g]", e.Field, e.SiteID, e.Value, MinScore, MaxScore)
	}
	return fmt.Sprintf("invalid score: %s is %v, want [%g, %g]", e.Field, e.Value, MinScore, MaxScore)
}

func (e *InvalidScoreError) Unwrap() error {
	return ErrInvalidScore
}

// IsInvalidScore reports whether err carries an out of range score.
func IsInvalidScore(err error) bool {
	return errors.Is(err, ErrInvalidScore)
}
