package access

import "github.com/roach88/awareness/internal/world"

// Clearance bracket bounds. A clearance below the bound falls in the
// lower bracket.
const (
	InternalClearance     = 40
	ConfidentialClearance = 60
	ClassifiedClearance   = 80
)

// Ceiling returns the most permissive tier a clearance level may receive.
func Ceiling(clearance int) world.Tier {
	switch {
	case clearance < InternalClearance:
		return world.TierPublic
	case clearance < ConfidentialClearance:
		return world.TierInternal
	case clearance < ClassifiedClearance:
		return world.TierConfidential
	default:
		return world.TierClassified
	}
}

// Grant returns the tier the grant table assigns to a change, before the
// clearance ceiling is applied. First matching rule wins.
func Grant(change world.Change, caps world.Capabilities) world.Tier {
	military := change.Category == world.CategoryMilitary
	switch {
	case military && change.Impact == world.ImpactCritical:
		return world.TierClassified
	case military && change.Impact == world.ImpactMajor:
		return world.TierConfidential
	case change.Category == world.CategoryPolitical && caps.Official:
		return world.TierConfidential
	case change.Impact >= world.ImpactMajor:
		return world.TierInternal
	case military && change.Impact == world.ImpactModerate:
		return world.TierInternal
	default:
		return world.TierPublic
	}
}

// Filter returns the disclosure tier and redacted payload of change for
// profile.
func Filter(change world.Change, profile world.SubscriberProfile) world.Disclosure {
	tier := world.MinTier(Grant(change, profile.Capabilities), Ceiling(profile.Clearance))
	payload, redacted := Redact(change.Payload, tier)
	return world.Disclosure{Tier: tier, Payload: payload, Redacted: redacted}
}

// Redact keeps payload fields at or below tier, in order, and reports how
// many were dropped. The input slice is not modified.
func Redact(payload []world.PayloadField, tier world.Tier) ([]world.PayloadField, int) {
	out := make([]world.PayloadField, 0, len(payload))
	for _, f := range payload {
		if f.Tier <= tier {
			out = append(out, f)
		}
	}
	return out, len(payload) - len(out)
}
