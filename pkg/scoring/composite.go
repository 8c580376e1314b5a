package scoring

import "math"

// Score is a composite site score. Value keeps full precision for ranking;
// Display is rounded to one decimal place.
type Score struct {
	Value   float64
	Display float64
}

// Composite returns the unweighted mean of the three sub-scores. Every
// component that needs an overall site score goes through here.
func Composite(feasibility, diversity, dataAvailability float64) (Score, error) {
	return compositeFor("", feasibility, diversity, dataAvailability)
}

func compositeFor(siteID string, feasibility, diversity, dataAvailability float64) (Score, error) {
	if err := checkRange("feasibility_score", siteID, feasibility); err != nil {
		return Score{}, err
	}
	if err := checkRange("diversity_score", siteID, diversity); err != nil {
		return Score{}, err
	}
	if err := checkRange("data_availability_score", siteID, dataAvailability); err != nil {
		return Score{}, err
	}
	mean := (feasibility + diversity + dataAvailability) / 3
	return Score{Value: mean, Display: RoundDisplay(mean)}, nil
}

// RoundDisplay rounds v to one decimal place, halves away from zero.
func RoundDisplay(v float64) float64 {
	return math.Round(v*10) / 10
}
