package world

import (
	"fmt"
	"strings"
)

// Category partitions a snapshot and classifies changes.
type Category string

const (
	CategoryPolitical     Category = "political"
	CategoryEconomic      Category = "economic"
	CategoryMilitary      Category = "military"
	CategorySocial        Category = "social"
	CategoryTechnological Category = "technological"
	CategoryEnvironmental Category = "environmental"
)

// Categories lists every category in detection order.
// The order NEVER changes: change output ordering depends on it.
var Categories = []Category{
	CategoryPolitical,
	CategoryEconomic,
	CategoryMilitary,
	CategorySocial,
	CategoryTechnological,
	CategoryEnvironmental,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ImpactLevel grades how significant a change is.
type ImpactLevel int

const (
	ImpactMinor ImpactLevel = iota
	ImpactModerate
	ImpactMajor
	ImpactCritical
)

var impactNames = []string{"minor", "moderate", "major", "critical"}

// ImpactLevels lists every impact level, least significant first.
var ImpactLevels = []ImpactLevel{ImpactMinor, ImpactModerate, ImpactMajor, ImpactCritical}

func (l ImpactLevel) String() string {
	if l < 0 || int(l) >= len(impactNames) {
		return fmt.Sprintf("impact(%d)", int(l))
	}
	return impactNames[l]
}

// ParseImpactLevel parses the lower-case name of an impact level.
func ParseImpactLevel(s string) (ImpactLevel, error) {
	i, err := parseOrdinal(impactNames, s)
	if err != nil {
		return ImpactMinor, fmt.Errorf("impact level: %w", err)
	}
	return ImpactLevel(i), nil
}

func (l ImpactLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *ImpactLevel) UnmarshalText(b []byte) error {
	v, err := ParseImpactLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Priority orders notifications for delivery and display.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

var priorityNames = []string{"low", "normal", "high", "urgent"}

func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNames) {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority parses the lower-case name of a priority.
func ParsePriority(s string) (Priority, error) {
	i, err := parseOrdinal(priorityNames, s)
	if err != nil {
		return PriorityLow, fmt.Errorf("priority: %w", err)
	}
	return Priority(i), nil
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Tier is a disclosure tier. Higher tiers disclose more sensitive content.
type Tier int

const (
	TierPublic Tier = iota
	TierInternal
	TierConfidential
	TierClassified
)

var tierNames = []string{"public", "internal", "confidential", "classified"}

// Tiers lists every tier, least sensitive first.
var Tiers = []Tier{TierPublic, TierInternal, TierConfidential, TierClassified}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier parses the lower-case name of a tier.
func ParseTier(s string) (Tier, error) {
	i, err := parseOrdinal(tierNames, s)
	if err != nil {
		return TierPublic, fmt.Errorf("tier: %w", err)
	}
	return Tier(i), nil
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MinTier returns the more restrictive of two tiers.
func MinTier(a, b Tier) Tier {
	if a < b {
		return a
	}
	return b
}

func parseOrdinal(names []string, s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value %q (want one of %s)", s, strings.Join(names, ", "))
}
