// Package access decides how much of a change a subscriber may see.
//
// Two tables drive every decision:
//
//	grant    (category, impact, official) -> tier the change deserves
//	ceiling  clearance bracket            -> most a subscriber may see
//
// The disclosed tier is the more restrictive of the two, so no rule can
// disclose past a subscriber's bracket. Payload fields marked above the
// disclosed tier are stripped.
//
// View builds the per-subscriber snapshot view used for awareness
// context, gating whole sections by clearance and access tags.
package access
