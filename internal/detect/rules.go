package detect

import "github.com/roach88/awareness/internal/world"

// Named thresholds. Detection is inclusive: a delta exactly at the
// threshold triggers a change.
const (
	// ThresholdAggregate is the relative threshold for aggregate indicators.
	ThresholdAggregate = 0.05
	// ThresholdBudget is the relative threshold for budget lines.
	ThresholdBudget = 0.10
	// ThresholdRatePoints is the absolute threshold for percentage rates.
	ThresholdRatePoints = 1.0
	// ThresholdMoodPoints is the absolute threshold for 0-100 metrics.
	ThresholdMoodPoints = 10.0
)

// thresholdTolerance absorbs float rounding at the exact boundary.
const thresholdTolerance = 1e-9

// Magnitude bands, in multiples of the field threshold.
const (
	bandModerate = 2.0
	bandMajor    = 3.0
	bandCritical = 5.0
)

// Kind selects the comparison applied to a field.
type Kind int

const (
	// KindRelative compares |cur-prev|/|prev| against the threshold.
	KindRelative Kind = iota
	// KindAbsolute compares |cur-prev| against the threshold.
	KindAbsolute
	// KindEnum triggers on any inequality of string values.
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindRelative:
		return "relative"
	case KindAbsolute:
		return "absolute"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// FieldRule describes how one scalar field is compared.
type FieldRule struct {
	Category    world.Category
	Field       string
	Subcategory string
	Kind        Kind
	Threshold   float64

	// Sensitivity is the tier of the raw values placed in the payload.
	Sensitivity world.Tier

	// EnumImpact maps a new enum value to an impact. Values not listed
	// use DefaultImpact.
	EnumImpact    map[string]world.ImpactLevel
	DefaultImpact world.ImpactLevel
}

// DefaultRules returns the standard rule table, grouped by category in
// world.Categories order.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{Category: world.CategoryPolitical, Field: "government_type", Subcategory: "governance", Kind: KindEnum, DefaultImpact: world.ImpactMajor},
		{Category: world.CategoryPolitical, Field: "game_phase", Subcategory: "phase", Kind: KindEnum, DefaultImpact: world.ImpactModerate},
		{Category: world.CategoryPolitical, Field: "diplomatic_standing", Subcategory: "diplomacy", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
		{Category: world.CategoryPolitical, Field: "player_reputation", Subcategory: "reputation", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},

		{Category: world.CategoryEconomic, Field: "gdp", Subcategory: "indicators", Kind: KindRelative, Threshold: ThresholdAggregate},
		{Category: world.CategoryEconomic, Field: "trade_balance", Subcategory: "indicators", Kind: KindRelative, Threshold: ThresholdAggregate},
		{Category: world.CategoryEconomic, Field: "unemployment_rate", Subcategory: "labor", Kind: KindAbsolute, Threshold: ThresholdRatePoints},
		{Category: world.CategoryEconomic, Field: "inflation_rate", Subcategory: "prices", Kind: KindAbsolute, Threshold: ThresholdRatePoints},
		{Category: world.CategoryEconomic, Field: "total_revenue", Subcategory: "budget", Kind: KindRelative, Threshold: ThresholdAggregate, Sensitivity: world.TierInternal},
		{Category: world.CategoryEconomic, Field: "total_expenditure", Subcategory: "budget", Kind: KindRelative, Threshold: ThresholdAggregate, Sensitivity: world.TierInternal},

		{Category: world.CategoryMilitary, Field: "threat_level", Subcategory: "posture", Kind: KindEnum, Sensitivity: world.TierInternal,
			EnumImpact:    map[string]world.ImpactLevel{"critical": world.ImpactCritical, "high": world.ImpactMajor},
			DefaultImpact: world.ImpactModerate},
		{Category: world.CategoryMilitary, Field: "military_readiness", Subcategory: "readiness", Kind: KindAbsolute, Threshold: ThresholdMoodPoints, Sensitivity: world.TierConfidential},
		{Category: world.CategoryMilitary, Field: "total_military_personnel", Subcategory: "readiness", Kind: KindRelative, Threshold: ThresholdAggregate, Sensitivity: world.TierConfidential},
		{Category: world.CategoryMilitary, Field: "defense_spending", Subcategory: "budget", Kind: KindRelative, Threshold: ThresholdBudget, Sensitivity: world.TierConfidential},

		{Category: world.CategorySocial, Field: "population_happiness", Subcategory: "mood", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
		{Category: world.CategorySocial, Field: "social_unrest_level", Subcategory: "mood", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
		{Category: world.CategorySocial, Field: "education_level", Subcategory: "services", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
		{Category: world.CategorySocial, Field: "healthcare_quality", Subcategory: "services", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
		{Category: world.CategorySocial, Field: "total_population", Subcategory: "demographics", Kind: KindRelative, Threshold: ThresholdAggregate},

		{Category: world.CategoryTechnological, Field: "research_level", Subcategory: "research", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
		{Category: world.CategoryTechnological, Field: "research_budget", Subcategory: "budget", Kind: KindRelative, Threshold: ThresholdBudget, Sensitivity: world.TierInternal},

		{Category: world.CategoryEnvironmental, Field: "climate_stability", Subcategory: "climate", Kind: KindAbsolute, Threshold: ThresholdMoodPoints},
	}
}

// impactForMagnitude grades a numeric change measured in thresholds.
func impactForMagnitude(m float64) world.ImpactLevel {
	switch {
	case m >= bandCritical:
		return world.ImpactCritical
	case m >= bandMajor:
		return world.ImpactMajor
	case m >= bandModerate:
		return world.ImpactModerate
	default:
		return world.ImpactMinor
	}
}
