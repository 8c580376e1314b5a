package scoring

import (
	"errors"
	"math"
	"testing"
)

func TestClassifyBuckets(t *testing.T) {
	tests := []struct {
		score    float64
		level    Level
		label    string
		severity Severity
	}{
		{0, LevelLow, "Low", SeverityFavorable},
		{4.99, LevelLow, "Low", SeverityFavorable},
		{5.0, LevelModerate, "Moderate", SeverityCaution},
		{6.999, LevelModerate, "Moderate", SeverityCaution},
		{7.0, LevelHigh, "High", SeverityCritical},
		{10, LevelHigh, "High", SeverityCritical},
	}
	for _, tt := range tests {
		got, err := Classify(tt.score)
		if err != nil {
			t.Fatalf("Classify(%v): unexpected error %v", tt.score, err)
		}
		if got.Level != tt.level || got.Label != tt.label || got.Severity != tt.severity {
			t.Errorf("Classify(%v) = %+v, want %s/%s/%s", tt.score, got, tt.level, tt.label, tt.severity)
		}
	}
}

func TestClassifyMatchesBreakpointsEverywhere(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		s := float64(i) / 100
		got, err := Classify(s)
		if err != nil {
			t.Fatalf("Classify(%v): %v", s, err)
		}
		var want Level
		switch {
		case s < 5:
			want = LevelLow
		case s < 7:
			want = LevelModerate
		default:
			want = LevelHigh
		}
		if got.Level != want {
			t.Fatalf("Classify(%v) = %s, want %s", s, got.Level, want)
		}
	}
}

func TestClassifyRejectsOutOfRange(t *testing.T) {
	for _, s := range []float64{-0.01, 10.01, math.NaN(), math.Inf(1)} {
		_, err := Classify(s)
		if !errors.Is(err, ErrInvalidScore) {
			t.Errorf("Classify(%v): expected ErrInvalidScore, got %v", s, err)
		}
	}
}

func TestClassifyComplexity(t *testing.T) {
	c, err := ClassifyComplexity(7.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Label != "High Complexity" {
		t.Fatalf("expected High Complexity, got %q", c.Label)
	}
	if c.Variant != "danger" || c.Severity.Color() != "#dc3545" {
		t.Fatalf("unexpected display mapping %+v", c)
	}

	_, err = ClassifyComplexity(12)
	var ise *InvalidScoreError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidScoreError, got %v", err)
	}
	if ise.Field != "protocol_complexity_score" {
		t.Fatalf("expected complexity field, got %q", ise.Field)
	}
}
