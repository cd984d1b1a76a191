package world

import (
	"sort"
	"time"
)

// Snapshot is a versioned, point-in-time record of world state.
//
// Sections hold loosely typed data on purpose: the simulation producing
// snapshots is external, so a single field may be missing or malformed.
// Consumers must tolerate that per field rather than per snapshot.
type Snapshot struct {
	Version  int64                 `json:"version" yaml:"version"`
	Turn     int                   `json:"turn,omitempty" yaml:"turn,omitempty"`
	TakenAt  time.Time             `json:"taken_at" yaml:"taken_at"`
	Sections map[Category]*Section `json:"sections" yaml:"sections"`
}

// Section holds the scalar metrics and sub-event lists of one category.
type Section struct {
	// Fields maps a metric name to a scalar (number or string).
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Events maps a list name to sub-events with stable ids.
	Events map[string][]SubEvent `json:"events,omitempty" yaml:"events,omitempty"`

	// Areas are the regions this section's metrics describe.
	Areas []string `json:"areas,omitempty" yaml:"areas,omitempty"`
}

// SubEvent is one entry of an ordered sub-event list.
// Impact and Classification stay raw strings so a bad value only
// invalidates the entry, never the whole snapshot.
type SubEvent struct {
	ID             string            `json:"id" yaml:"id"`
	Title          string            `json:"title,omitempty" yaml:"title,omitempty"`
	Impact         string            `json:"impact,omitempty" yaml:"impact,omitempty"`
	Classification string            `json:"classification,omitempty" yaml:"classification,omitempty"`
	Areas          []string          `json:"areas,omitempty" yaml:"areas,omitempty"`
	Details        map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Section returns the named section, or nil if the snapshot lacks it.
func (s *Snapshot) Section(c Category) *Section {
	if s == nil || s.Sections == nil {
		return nil
	}
	return s.Sections[c]
}

// ListNames returns the sub-event list names in sorted order.
func (s *Section) ListNames() []string {
	names := make([]string, 0, len(s.Events))
	for name := range s.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy so the stored snapshot cannot be mutated
// through a reference still held by the producer.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Version: s.Version,
		Turn:    s.Turn,
		TakenAt: s.TakenAt,
	}
	if s.Sections != nil {
		out.Sections = make(map[Category]*Section, len(s.Sections))
		for c, sec := range s.Sections {
			out.Sections[c] = sec.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the section.
func (s *Section) Clone() *Section {
	if s == nil {
		return nil
	}
	out := &Section{Areas: append([]string(nil), s.Areas...)}
	if s.Fields != nil {
		out.Fields = make(map[string]any, len(s.Fields))
		for k, v := range s.Fields {
			out.Fields[k] = cloneValue(v)
		}
	}
	if s.Events != nil {
		out.Events = make(map[string][]SubEvent, len(s.Events))
		for name, list := range s.Events {
			cp := make([]SubEvent, len(list))
			for i, ev := range list {
				cp[i] = ev
				cp[i].Areas = append([]string(nil), ev.Areas...)
				if ev.Details != nil {
					cp[i].Details = make(map[string]string, len(ev.Details))
					for k, v := range ev.Details {
						cp[i].Details[k] = v
					}
				}
			}
			out.Events[name] = cp
		}
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		arr := make([]any, len(val))
		for i, e := range val {
			arr[i] = cloneValue(e)
		}
		return arr
	default:
		return v
	}
}
