package access

import "github.com/roach88/awareness/internal/world"

// Section visibility thresholds. Comparisons are strict.
const (
	basicSectionClearance      = 30
	sensitiveSectionClearance  = 60
	restrictedSectionClearance = 80
)

// summaryFields are always visible, read from the political section.
var summaryFields = []string{"game_phase", "government_type"}

// tagGrants open a section regardless of clearance.
var tagGrants = map[string]world.Category{
	"government_internal":   world.CategoryPolitical,
	"military_intelligence": world.CategoryMilitary,
	"financial_information": world.CategoryEconomic,
	"research_data":         world.CategoryTechnological,
}

// View is a subscriber's filtered picture of one snapshot.
type View struct {
	SubscriberID string                            `json:"subscriber_id"`
	Version      int64                             `json:"version"`
	Turn         int                               `json:"turn"`
	Summary      map[string]any                    `json:"summary,omitempty"`
	Sections     map[world.Category]*world.Section `json:"sections,omitempty"`
	// Visible lists the sections present, in world.Categories order.
	Visible []world.Category `json:"visible"`
}

// DependsOn lists the categories whose changes make the view stale.
// The summary always reads the political section.
func (v *View) DependsOn() []world.Category {
	deps := []world.Category{world.CategoryPolitical}
	for _, c := range v.Visible {
		if c != world.CategoryPolitical {
			deps = append(deps, c)
		}
	}
	return deps
}

// VisibleCategories returns the sections profile may see, in
// world.Categories order.
func VisibleCategories(profile world.SubscriberProfile) []world.Category {
	open := make(map[world.Category]bool)
	if profile.Clearance > basicSectionClearance {
		open[world.CategoryEconomic] = true
		open[world.CategorySocial] = true
	}
	if profile.Clearance > sensitiveSectionClearance {
		open[world.CategoryPolitical] = true
		open[world.CategoryMilitary] = true
	}
	if profile.Clearance > restrictedSectionClearance {
		open[world.CategoryTechnological] = true
		open[world.CategoryEnvironmental] = true
	}
	for _, tag := range profile.AccessTags {
		if c, ok := tagGrants[tag]; ok {
			open[c] = true
		}
	}

	var out []world.Category
	for _, c := range world.Categories {
		if open[c] {
			out = append(out, c)
		}
	}
	return out
}

// BuildView derives profile's view of snap. Sub-events classified above
// the subscriber's clearance ceiling are withheld from visible sections.
func BuildView(snap *world.Snapshot, profile world.SubscriberProfile) *View {
	v := &View{SubscriberID: profile.ID}
	if snap == nil {
		return v
	}
	v.Version = snap.Version
	v.Turn = snap.Turn

	if pol := snap.Section(world.CategoryPolitical); pol != nil {
		for _, f := range summaryFields {
			if val, ok := pol.Fields[f]; ok {
				if v.Summary == nil {
					v.Summary = make(map[string]any)
				}
				v.Summary[f] = val
			}
		}
	}

	ceiling := Ceiling(profile.Clearance)
	for _, c := range VisibleCategories(profile) {
		sec := snap.Section(c)
		if sec == nil {
			continue
		}
		if v.Sections == nil {
			v.Sections = make(map[world.Category]*world.Section)
		}
		v.Sections[c] = withholdEvents(sec, ceiling)
		v.Visible = append(v.Visible, c)
	}
	return v
}

// withholdEvents deep-copies sec, dropping sub-events above ceiling. An
// unreadable classification is withheld.
func withholdEvents(sec *world.Section, ceiling world.Tier) *world.Section {
	out := sec.Clone()
	if len(out.Events) == 0 {
		return out
	}
	for name, list := range out.Events {
		kept := make([]world.SubEvent, 0, len(list))
		for _, ev := range list {
			tier := world.TierPublic
			if ev.Classification != "" {
				t, err := world.ParseTier(ev.Classification)
				if err != nil {
					continue
				}
				tier = t
			}
			if tier <= ceiling {
				kept = append(kept, ev)
			}
		}
		out.Events[name] = kept
	}
	return out
}
