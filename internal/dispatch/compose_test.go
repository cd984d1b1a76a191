package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/world"
)

var cyc = CycleInfo{Seq: 4, At: time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)}

func militaryOfficer() world.SubscriberProfile {
	return world.SubscriberProfile{
		ID:         "gen-okafor",
		Clearance:  80,
		AccessTags: []string{"military"},
		Capabilities: world.Capabilities{Matches: map[world.Category]world.Match{
			world.CategoryMilitary: world.MatchDirect,
		}},
	}
}

func threatChange() world.Change {
	return world.Change{
		Category:      world.CategoryMilitary,
		Subcategory:   "posture",
		Description:   "threat level changed from high to critical",
		Impact:        world.ImpactCritical,
		AffectedAreas: []string{"north"},
		RawDelta:      world.Delta{Field: "threat_level"},
		Version:       9,
	}
}

func TestTypeFor(t *testing.T) {
	civilian := world.SubscriberProfile{ID: "c"}
	sourceOnly := world.SubscriberProfile{ID: "s", Capabilities: world.Capabilities{Matches: map[world.Category]world.Match{
		world.CategoryMilitary: world.MatchSource,
	}}}

	mil := threatChange()
	econ := world.Change{Category: world.CategoryEconomic, Impact: world.ImpactMajor}
	econCritical := world.Change{Category: world.CategoryEconomic, Impact: world.ImpactCritical}

	assert.Equal(t, world.TypeSecurityBriefing, TypeFor(mil, militaryOfficer(), 10))
	assert.Equal(t, world.TypeProfessionalAlert, TypeFor(mil, sourceOnly, 10))
	assert.Equal(t, world.TypeProfessionalAlert, TypeFor(econCritical, civilian, 99))
	assert.Equal(t, world.TypeRelevantEvent, TypeFor(econ, civilian, 71))
	assert.Equal(t, world.TypeInformationUpdate, TypeFor(econ, civilian, 70))
}

func TestRequiresResponse(t *testing.T) {
	assert.True(t, RequiresResponse(world.TypeInformationUpdate, world.PriorityUrgent, world.ImpactMinor))
	assert.True(t, RequiresResponse(world.TypeSecurityBriefing, world.PriorityNormal, world.ImpactMajor))
	assert.False(t, RequiresResponse(world.TypeSecurityBriefing, world.PriorityHigh, world.ImpactModerate))
	assert.False(t, RequiresResponse(world.TypeProfessionalAlert, world.PriorityHigh, world.ImpactCritical))
}

func TestCompose_Irrelevant(t *testing.T) {
	_, ok := Compose(cyc, 0, threatChange(), militaryOfficer(), world.RelevanceResult{Score: 49}, world.Disclosure{})
	assert.False(t, ok)
}

func TestCompose_SecurityBriefing(t *testing.T) {
	rel := world.RelevanceResult{IsRelevant: true, Score: 120, Priority: world.PriorityUrgent}
	disc := world.Disclosure{
		Tier: world.TierClassified,
		Payload: []world.PayloadField{
			{Key: "field", Value: "threat_level"},
			{Key: "previous", Value: "high", Tier: world.TierInternal},
			{Key: "current", Value: "critical", Tier: world.TierInternal},
		},
	}

	n, ok := Compose(cyc, 0, threatChange(), militaryOfficer(), rel, disc)
	require.True(t, ok)
	assert.Equal(t, "gen-okafor", n.SubscriberID)
	assert.Equal(t, world.TypeSecurityBriefing, n.Type)
	assert.Equal(t, world.PriorityUrgent, n.Priority)
	assert.Equal(t, world.TierClassified, n.Tier)
	assert.True(t, n.RequiresResponse)
	assert.Equal(t, "Security Briefing: Military Posture", n.Title)
	assert.Equal(t, "Threat level changed from high to critical. Details: previous: high; current: critical. Affected areas: north.", n.Content)
	assert.Equal(t, cyc.At, n.Timestamp)
	assert.Equal(t, int64(4), n.Cycle)
	assert.Equal(t, "military/posture/threat_level@9", n.ChangeKey)
}

func TestContent_RedactedHidesDescription(t *testing.T) {
	ch := world.Change{
		Category:    world.CategoryMilitary,
		Subcategory: "readiness",
		Description: "military readiness fell from 70 to 20",
		Impact:      world.ImpactCritical,
	}
	disc := world.Disclosure{
		Tier:     world.TierInternal,
		Payload:  []world.PayloadField{{Key: "field", Value: "military_readiness"}},
		Redacted: 3,
	}

	got := Content(ch, disc)
	assert.Equal(t, "Critical development reported in military readiness. 3 details withheld at your clearance.", got)
	assert.NotContains(t, got, "70")
}

func TestNotificationID_Deterministic(t *testing.T) {
	a := NotificationID(cyc, 0, "x", threatChange())
	assert.Equal(t, a, NotificationID(cyc, 0, "x", threatChange()))
	assert.NotEqual(t, a, NotificationID(cyc, 1, "x", threatChange()))
	assert.NotEqual(t, a, NotificationID(cyc, 0, "y", threatChange()))
	assert.NotEqual(t, a, NotificationID(CycleInfo{Seq: 5}, 0, "x", threatChange()))
}
