// Package relevance scores how pertinent a change is to a subscriber.
//
// Scoring is a pure function of (change, profile, weights). It reads the
// capability set derived at registration and never inspects free text.
package relevance

import (
	"fmt"

	"github.com/roach88/awareness/internal/world"
)

// Priority decision table bounds. Comparisons are strict.
const (
	UrgentCriticalScore = 80
	HighMajorScore      = 70
	HighScore           = 60
	NormalScore         = 50
)

// Weights are the tunable scoring parameters. The zero value is not
// useful; start from DefaultWeights.
type Weights struct {
	DirectMatch    int `yaml:"direct_match" env:"DIRECT_MATCH"`
	SpecialtyMatch int `yaml:"specialty_match" env:"SPECIALTY_MATCH"`
	SourceMatch    int `yaml:"source_match" env:"SOURCE_MATCH"`

	ImpactModerate int `yaml:"impact_moderate" env:"IMPACT_MODERATE"`
	ImpactMajor    int `yaml:"impact_major" env:"IMPACT_MAJOR"`
	ImpactCritical int `yaml:"impact_critical" env:"IMPACT_CRITICAL"`

	LocationMatch    int `yaml:"location_match" env:"LOCATION_MATCH"`
	ClearancePenalty int `yaml:"clearance_penalty" env:"CLEARANCE_PENALTY"`

	// ClearanceRequirements is the minimum clearance a category expects.
	// Subscribers below it take ClearancePenalty.
	ClearanceRequirements map[world.Category]int `yaml:"clearance_requirements"`

	// RelevanceThreshold is the minimum score for IsRelevant.
	RelevanceThreshold int `yaml:"relevance_threshold" env:"RELEVANCE_THRESHOLD"`
}

// DefaultWeights returns the standard calibration.
func DefaultWeights() Weights {
	return Weights{
		DirectMatch:      90,
		SpecialtyMatch:   75,
		SourceMatch:      65,
		ImpactModerate:   10,
		ImpactMajor:      20,
		ImpactCritical:   30,
		LocationMatch:    25,
		ClearancePenalty: 40,
		ClearanceRequirements: map[world.Category]int{
			world.CategoryMilitary: 60,
		},
		RelevanceThreshold: 50,
	}
}

func (w Weights) forMatch(m world.Match) int {
	switch m {
	case world.MatchDirect:
		return w.DirectMatch
	case world.MatchSpecialty:
		return w.SpecialtyMatch
	case world.MatchSource:
		return w.SourceMatch
	default:
		return 0
	}
}

func (w Weights) forImpact(l world.ImpactLevel) int {
	switch l {
	case world.ImpactModerate:
		return w.ImpactModerate
	case world.ImpactMajor:
		return w.ImpactMajor
	case world.ImpactCritical:
		return w.ImpactCritical
	default:
		return 0
	}
}

// Scorer applies a fixed set of weights.
type Scorer struct {
	w Weights
}

// NewScorer returns a scorer using w.
func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Weights returns the scorer's calibration.
func (s *Scorer) Weights() Weights { return s.w }

// Score evaluates change against profile. Identical inputs always
// produce identical results.
func (s *Scorer) Score(change world.Change, profile world.SubscriberProfile) world.RelevanceResult {
	var (
		score   int
		reasons []string
	)

	if m := profile.Capabilities.MatchFor(change.Category); m != world.MatchNone {
		add := s.w.forMatch(m)
		score += add
		reasons = append(reasons, fmt.Sprintf("%s match on %s (+%d)", m, change.Category, add))
	}

	if add := s.w.forImpact(change.Impact); add != 0 {
		score += add
		reasons = append(reasons, fmt.Sprintf("%s impact (+%d)", change.Impact, add))
	}

	if change.AffectsArea(profile.Location) {
		score += s.w.LocationMatch
		reasons = append(reasons, fmt.Sprintf("affects %s (+%d)", profile.Location, s.w.LocationMatch))
	}

	if need, ok := s.w.ClearanceRequirements[change.Category]; ok && profile.Clearance < need {
		score -= s.w.ClearancePenalty
		reasons = append(reasons, fmt.Sprintf("clearance %d below %d for %s (-%d)", profile.Clearance, need, change.Category, s.w.ClearancePenalty))
	}

	if score < 0 {
		score = 0
	}

	return world.RelevanceResult{
		IsRelevant: score >= s.w.RelevanceThreshold,
		Score:      score,
		Reasons:    reasons,
		Priority:   PriorityFor(score, change.Impact),
	}
}

// PriorityFor applies the priority decision table. First match wins.
func PriorityFor(score int, impact world.ImpactLevel) world.Priority {
	switch {
	case impact == world.ImpactCritical && score > UrgentCriticalScore:
		return world.PriorityUrgent
	case impact == world.ImpactMajor && score > HighMajorScore:
		return world.PriorityHigh
	case score > HighScore:
		return world.PriorityHigh
	case score > NormalScore:
		return world.PriorityNormal
	default:
		return world.PriorityLow
	}
}
