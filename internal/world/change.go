package world

import (
	"fmt"
	"sort"
	"time"
)

// ChangeSource records where a change came from.
type ChangeSource string

const (
	SourceDetected ChangeSource = "detected"
	SourceInjected ChangeSource = "injected"
)

// Change is a typed, classified delta between two consecutive snapshots,
// or an externally injected event. Never mutated after creation.
type Change struct {
	Category      Category       `json:"category" yaml:"category"`
	Subcategory   string         `json:"subcategory" yaml:"subcategory"`
	Description   string         `json:"description" yaml:"description"`
	Impact        ImpactLevel    `json:"impact_level" yaml:"impact_level"`
	AffectedAreas []string       `json:"affected_areas,omitempty" yaml:"affected_areas,omitempty"`
	Timestamp     time.Time      `json:"timestamp" yaml:"timestamp"`
	RawDelta      Delta          `json:"raw_delta" yaml:"raw_delta,omitempty"`
	Payload       []PayloadField `json:"payload,omitempty" yaml:"payload,omitempty"`
	Source        ChangeSource   `json:"source" yaml:"source,omitempty"`
	Version       int64          `json:"version,omitempty" yaml:"version,omitempty"`
}

// Delta carries the raw before/after values behind a change.
// Field is the metric name, or the sub-event id for list additions.
type Delta struct {
	Field     string  `json:"field" yaml:"field"`
	Previous  any     `json:"previous,omitempty" yaml:"previous,omitempty"`
	Current   any     `json:"current,omitempty" yaml:"current,omitempty"`
	Magnitude float64 `json:"magnitude,omitempty" yaml:"magnitude,omitempty"`
}

// PayloadField is one piece of change content marked with the tier
// required to see it.
type PayloadField struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
	Tier  Tier   `json:"tier" yaml:"tier"`
}

// Key identifies a change within a version. Used for notification ids.
func (c Change) Key() string {
	return fmt.Sprintf("%s/%s/%s@%d", c.Category, c.Subcategory, c.RawDelta.Field, c.Version)
}

// AffectsArea reports whether any affected area equals area.
func (c Change) AffectsArea(area string) bool {
	if area == "" {
		return false
	}
	for _, a := range c.AffectedAreas {
		if a == area {
			return true
		}
	}
	return false
}

// String renders a one-line summary, stable for identical changes.
func (c Change) String() string {
	return fmt.Sprintf("%s/%s [%s] %s", c.Category, c.Subcategory, c.Impact, c.Description)
}

// AreaSet normalises a list of areas into a sorted, de-duplicated set.
func AreaSet(areas ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range areas {
		for _, a := range list {
			if a == "" {
				continue
			}
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
