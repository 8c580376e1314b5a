package scoring

import (
	"fmt"
	"math"
	"sort"
)

// TieEpsilon is the tolerance under which two composite scores are equal.
const TieEpsilon = 1e-9

// SiteCandidate is one recommended site. OverallScore, OverallRank and
// Classification are derived by Rank; values set by callers are ignored.
// Classification comes from the unrounded composite, like the ranking, so a
// site shown with OverallScore 7.0 can still be Moderate.
type SiteCandidate struct {
	SiteID           string   `json:"site_id"`
	SiteName         string   `json:"site_name"`
	Country          string   `json:"country"`
	Feasibility      float64  `json:"feasibility_score"`
	Diversity        float64  `json:"diversity_score"`
	DataAvailability float64  `json:"data_availability_score"`
	Strengths        []string `json:"strengths"`
	Challenges       []string `json:"challenges"`

	OverallRank    int            `json:"overall_rank"`
	OverallScore   float64        `json:"overall_score"`
	Classification Classification `json:"classification"`

	composite float64
}

// Composite is the unrounded composite score computed during ranking.
func (s SiteCandidate) Composite() float64 {
	return s.composite
}

// Rank scores and orders sites: composite score descending, then
// feasibility descending, then site id ascending. Ranks run 1..N with no
// shared positions. The input slice is left untouched. An empty input
// yields an empty ranking.
func Rank(sites []SiteCandidate) ([]SiteCandidate, error) {
	ranked := make([]SiteCandidate, len(sites))
	seen := make(map[string]struct{}, len(sites))

	for i, site := range sites {
		if _, dup := seen[site.SiteID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSite, site.SiteID)
		}
		seen[site.SiteID] = struct{}{}

		score, err := compositeFor(site.SiteID, site.Feasibility, site.Diversity, site.DataAvailability)
		if err != nil {
			return nil, err
		}
		class, err := Classify(score.Value)
		if err != nil {
			return nil, err
		}

		site.Strengths = nonNil(site.Strengths)
		site.Challenges = nonNil(site.Challenges)
		site.composite = score.Value
		site.OverallScore = score.Display
		site.Classification = class
		ranked[i] = site
	}

	sort.Slice(ranked, func(i, j int) bool {
		return before(ranked[i], ranked[j])
	})

	for i := range ranked {
		ranked[i].OverallRank = i + 1
	}
	return ranked, nil
}

func before(a, b SiteCandidate) bool {
	if math.Abs(a.composite-b.composite) > TieEpsilon {
		return a.composite > b.composite
	}
	if a.Feasibility != b.Feasibility {
		return a.Feasibility > b.Feasibility
	}
	return a.SiteID < b.SiteID
}

// Top returns at most n leading sites of a ranking. n <= 0 returns all.
func Top(ranked []SiteCandidate, n int) []SiteCandidate {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
