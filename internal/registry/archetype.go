package registry

import "github.com/roach88/awareness/internal/world"

// Archetype names.
const (
	ArchetypeOfficial = "official"
	ArchetypeMilitary = "military"
	ArchetypeBusiness = "business"
	ArchetypeAcademic = "academic"
	ArchetypeMedia    = "media"
	ArchetypeCitizen  = "citizen"
)

// ArchetypeDefaults are the clearance and tags assumed for an archetype
// when a profile leaves them unset.
type ArchetypeDefaults struct {
	Clearance  int
	AccessTags []string
	Sources    []string
}

var archetypes = map[string]ArchetypeDefaults{
	ArchetypeOfficial: {
		Clearance:  75,
		AccessTags: []string{"public_information", "government_internal", "policy_documents", "budget_details"},
		Sources:    []string{"government_briefings", "internal_reports"},
	},
	ArchetypeMilitary: {
		Clearance:  80,
		AccessTags: []string{"public_information", "military_intelligence", "security_briefings", "tactical_information"},
		Sources:    []string{"intelligence_briefings", "military_communications"},
	},
	ArchetypeBusiness: {
		Clearance:  60,
		AccessTags: []string{"public_information", "market_data", "industry_reports", "financial_information"},
		Sources:    []string{"market_intelligence", "trade_organizations"},
	},
	ArchetypeAcademic: {
		Clearance:  50,
		AccessTags: []string{"public_information", "research_data", "scientific_reports", "academic_networks"},
		Sources:    []string{"research_publications", "research_institutions"},
	},
	ArchetypeMedia: {
		Clearance:  40,
		AccessTags: []string{"public_information", "press_briefings", "investigative_sources", "public_records"},
		Sources:    []string{"press_releases", "source_networks"},
	},
	ArchetypeCitizen: {
		Clearance:  25,
		AccessTags: []string{"public_information"},
		Sources:    []string{"public_news", "social_media"},
	},
}

// DefaultsFor returns the defaults for an archetype.
func DefaultsFor(archetype string) (ArchetypeDefaults, bool) {
	d, ok := archetypes[normalizeTag(archetype)]
	return d, ok
}

// ApplyArchetype fills unset fields of p from its archetype. Clearance is
// only filled when clearanceSet is false, since zero is a valid clearance.
func ApplyArchetype(p world.SubscriberProfile, clearanceSet bool) world.SubscriberProfile {
	d, ok := DefaultsFor(p.Archetype)
	if !ok {
		return p
	}
	out := p.Clone()
	if !clearanceSet {
		out.Clearance = d.Clearance
	}
	if len(out.AccessTags) == 0 {
		out.AccessTags = append([]string(nil), d.AccessTags...)
	}
	if len(out.Sources) == 0 {
		out.Sources = append([]string(nil), d.Sources...)
	}
	return out
}
