package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/world"
)

func TestFilter_CriticalMilitaryForCleared(t *testing.T) {
	ch := world.Change{
		Category: world.CategoryMilitary,
		Impact:   world.ImpactCritical,
		Payload: []world.PayloadField{
			{Key: "field", Value: "threat_level", Tier: world.TierPublic},
			{Key: "current", Value: "critical", Tier: world.TierClassified},
		},
	}
	p := world.SubscriberProfile{
		Clearance:    80,
		AccessTags:   []string{"military"},
		Capabilities: world.Capabilities{Matches: map[world.Category]world.Match{world.CategoryMilitary: world.MatchDirect}},
	}

	d := Filter(ch, p)
	assert.Equal(t, world.TierClassified, d.Tier)
	assert.Len(t, d.Payload, 2)
	assert.Zero(t, d.Redacted)
}

func TestFilter_CeilingWins(t *testing.T) {
	ch := world.Change{
		Category: world.CategoryMilitary,
		Impact:   world.ImpactCritical,
		Payload: []world.PayloadField{
			{Key: "field", Value: "military_readiness", Tier: world.TierPublic},
			{Key: "previous", Value: "70", Tier: world.TierConfidential},
			{Key: "current", Value: "20", Tier: world.TierConfidential},
		},
	}

	d := Filter(ch, world.SubscriberProfile{Clearance: 45})
	assert.Equal(t, world.TierInternal, d.Tier)
	require.Len(t, d.Payload, 1)
	assert.Equal(t, "field", d.Payload[0].Key)
	assert.Equal(t, 2, d.Redacted)
	assert.Len(t, ch.Payload, 3, "input payload is untouched")
}

func TestFilter_PoliticalOfficial(t *testing.T) {
	ch := world.Change{Category: world.CategoryPolitical, Impact: world.ImpactMinor}

	official := world.SubscriberProfile{Clearance: 75, Capabilities: world.Capabilities{Official: true}}
	assert.Equal(t, world.TierConfidential, Filter(ch, official).Tier)

	citizen := world.SubscriberProfile{Clearance: 75}
	assert.Equal(t, world.TierPublic, Filter(ch, citizen).Tier)
}

func TestCeiling(t *testing.T) {
	tests := []struct {
		clearance int
		want      world.Tier
	}{
		{0, world.TierPublic},
		{39, world.TierPublic},
		{40, world.TierInternal},
		{59, world.TierInternal},
		{60, world.TierConfidential},
		{79, world.TierConfidential},
		{80, world.TierClassified},
		{100, world.TierClassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ceiling(tt.clearance), "clearance %d", tt.clearance)
	}
}

// expectedGrant restates the grant table independently of Grant.
func expectedGrant(cat world.Category, impact world.ImpactLevel, official bool) world.Tier {
	type key struct {
		cat      world.Category
		impact   world.ImpactLevel
		official bool
	}
	table := map[key]world.Tier{}
	for _, c := range world.Categories {
		for _, l := range world.ImpactLevels {
			for _, o := range []bool{false, true} {
				tier := world.TierPublic
				if l >= world.ImpactMajor {
					tier = world.TierInternal
				}
				table[key{c, l, o}] = tier
			}
		}
	}
	for _, o := range []bool{false, true} {
		table[key{world.CategoryMilitary, world.ImpactModerate, o}] = world.TierInternal
		table[key{world.CategoryMilitary, world.ImpactMajor, o}] = world.TierConfidential
		table[key{world.CategoryMilitary, world.ImpactCritical, o}] = world.TierClassified
	}
	for _, l := range world.ImpactLevels {
		table[key{world.CategoryPolitical, l, true}] = world.TierConfidential
	}
	return table[key{cat, impact, official}]
}

func TestFilter_NeverExceedsTable(t *testing.T) {
	for _, cat := range world.Categories {
		for _, impact := range world.ImpactLevels {
			for _, official := range []bool{false, true} {
				for clearance := 0; clearance <= 100; clearance++ {
					ch := world.Change{
						Category: cat,
						Impact:   impact,
						Payload: []world.PayloadField{
							{Key: "a", Tier: world.TierPublic},
							{Key: "b", Tier: world.TierInternal},
							{Key: "c", Tier: world.TierConfidential},
							{Key: "d", Tier: world.TierClassified},
						},
					}
					p := world.SubscriberProfile{Clearance: clearance, Capabilities: world.Capabilities{Official: official}}

					d := Filter(ch, p)
					want := world.MinTier(expectedGrant(cat, impact, official), Ceiling(clearance))
					require.Equal(t, want, d.Tier, "%s/%s official=%v clearance=%d", cat, impact, official, clearance)
					require.LessOrEqual(t, d.Tier, Ceiling(clearance))
					for _, f := range d.Payload {
						require.LessOrEqual(t, f.Tier, d.Tier)
					}
					require.Equal(t, len(ch.Payload), len(d.Payload)+d.Redacted)
				}
			}
		}
	}
}

func FuzzFilter(f *testing.F) {
	f.Add("military", 3, 80, true, 3)
	f.Add("political", 0, 10, true, 2)
	f.Add("economic", 2, 59, false, 1)
	f.Add("bogus", -1, -5, false, 9)

	f.Fuzz(func(t *testing.T, cat string, impact, clearance int, official bool, fieldTier int) {
		ch := world.Change{
			Category: world.Category(cat),
			Impact:   world.ImpactLevel(impact),
			Payload:  []world.PayloadField{{Key: "x", Tier: world.Tier(fieldTier)}},
		}
		p := world.SubscriberProfile{Clearance: clearance, Capabilities: world.Capabilities{Official: official}}

		d := Filter(ch, p)
		if d.Tier > Ceiling(clearance) {
			t.Fatalf("tier %s exceeds ceiling %s", d.Tier, Ceiling(clearance))
		}
		for _, pf := range d.Payload {
			if pf.Tier > d.Tier {
				t.Fatalf("payload field at %s leaked through %s", pf.Tier, d.Tier)
			}
		}
	})
}
