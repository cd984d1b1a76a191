package world

// Match grades how directly a subscriber's tags relate to a category.
type Match int

const (
	MatchNone Match = iota
	// MatchSource: an information source tag covers the category.
	MatchSource
	// MatchSpecialty: a specialty tag covers the category.
	MatchSpecialty
	// MatchDirect: a professional access tag covers the category.
	MatchDirect
)

func (m Match) String() string {
	switch m {
	case MatchSource:
		return "source"
	case MatchSpecialty:
		return "specialty"
	case MatchDirect:
		return "direct"
	default:
		return "none"
	}
}

// Capabilities is the tagged capability set computed once at
// registration. Scoring and filtering read it and never re-derive
// meaning from free-text profile fields.
type Capabilities struct {
	Matches  map[Category]Match `json:"matches" yaml:"matches"`
	Official bool               `json:"official" yaml:"official"`
}

// MatchFor returns the strongest match recorded for c.
func (c Capabilities) MatchFor(cat Category) Match {
	return c.Matches[cat]
}

// SubscriberProfile is the access/capability profile of a subscriber.
type SubscriberProfile struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Archetype   string   `json:"archetype,omitempty" yaml:"archetype,omitempty"`
	Clearance   int      `json:"clearance_level" yaml:"clearance_level"`
	AccessTags  []string `json:"professional_access_tags,omitempty" yaml:"professional_access_tags,omitempty"`
	Location    string   `json:"location_tag,omitempty" yaml:"location_tag,omitempty"`
	Specialties []string `json:"specialty_tags,omitempty" yaml:"specialty_tags,omitempty"`
	Sources     []string `json:"information_source_tags,omitempty" yaml:"information_source_tags,omitempty"`

	// Capabilities is derived by the registry; callers never set it.
	Capabilities Capabilities `json:"capabilities" yaml:"-"`
}

// HasAccessTag reports whether the profile carries the access tag.
func (p SubscriberProfile) HasAccessTag(tag string) bool {
	return contains(p.AccessTags, tag)
}

// Clone returns a copy that shares no slices or maps with p.
func (p SubscriberProfile) Clone() SubscriberProfile {
	out := p
	out.AccessTags = append([]string(nil), p.AccessTags...)
	out.Specialties = append([]string(nil), p.Specialties...)
	out.Sources = append([]string(nil), p.Sources...)
	if p.Capabilities.Matches != nil {
		out.Capabilities.Matches = make(map[Category]Match, len(p.Capabilities.Matches))
		for k, v := range p.Capabilities.Matches {
			out.Capabilities.Matches[k] = v
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
