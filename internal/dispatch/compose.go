package dispatch

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/awareness/internal/world"
)

// relevantEventScore is the score above which a change is a relevant
// event rather than an information update.
const relevantEventScore = 70

// notificationNamespace seeds name-based notification ids.
var notificationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("awareness:notification"))

// CycleInfo identifies the cycle a notification is produced in.
type CycleInfo struct {
	Seq int64
	At  time.Time
}

// TypeFor applies the notification type table. First match wins.
func TypeFor(change world.Change, profile world.SubscriberProfile, score int) world.NotificationType {
	switch {
	case change.Category == world.CategoryMilitary &&
		profile.Capabilities.MatchFor(world.CategoryMilitary) == world.MatchDirect:
		return world.TypeSecurityBriefing
	case change.Impact == world.ImpactCritical:
		return world.TypeProfessionalAlert
	case score > relevantEventScore:
		return world.TypeRelevantEvent
	default:
		return world.TypeInformationUpdate
	}
}

// RequiresResponse reports whether the subscriber is expected to act.
func RequiresResponse(typ world.NotificationType, priority world.Priority, impact world.ImpactLevel) bool {
	if priority == world.PriorityUrgent {
		return true
	}
	return typ == world.TypeSecurityBriefing && impact >= world.ImpactMajor
}

// NotificationID derives a stable id from the cycle, the change position
// within the cycle, the subscriber, and the change key.
func NotificationID(cyc CycleInfo, index int, subscriberID string, change world.Change) string {
	name := fmt.Sprintf("%d/%d/%s/%s", cyc.Seq, index, subscriberID, change.Key())
	return uuid.NewSHA1(notificationNamespace, []byte(name)).String()
}

// Compose builds the notification for one (change, subscriber) pair.
// Returns false when the change is not relevant.
func Compose(cyc CycleInfo, index int, change world.Change, profile world.SubscriberProfile, rel world.RelevanceResult, disc world.Disclosure) (world.Notification, bool) {
	if !rel.IsRelevant {
		return world.Notification{}, false
	}

	typ := TypeFor(change, profile, rel.Score)
	return world.Notification{
		ID:               NotificationID(cyc, index, profile.ID, change),
		SubscriberID:     profile.ID,
		Type:             typ,
		Priority:         rel.Priority,
		Title:            Title(typ, change),
		Content:          Content(change, disc),
		Tier:             disc.Tier,
		RequiresResponse: RequiresResponse(typ, rel.Priority, change.Impact),
		Timestamp:        cyc.At,
		Cycle:            cyc.Seq,
		Category:         change.Category,
		ChangeKey:        change.Key(),
		Payload:          disc.Payload,
	}, true
}

// Title renders e.g. "Security Briefing: Military Posture".
func Title(typ world.NotificationType, change world.Change) string {
	caser := cases.Title(language.English)
	return caser.String(humanize(string(typ))) + ": " + caser.String(subject(change))
}

// Content renders the template body from disclosed data only. When any
// payload field was withheld, the change description is replaced because
// it may quote withheld values.
func Content(change world.Change, disc world.Disclosure) string {
	var parts []string

	if disc.Redacted == 0 {
		parts = append(parts, sentence(change.Description))
	} else {
		parts = append(parts, sentence(fmt.Sprintf("%s development reported in %s", cases.Title(language.English).String(change.Impact.String()), subject(change))))
	}

	var details []string
	for _, f := range disc.Payload {
		if f.Key == "field" || f.Key == "event_id" {
			continue
		}
		details = append(details, humanize(f.Key)+": "+f.Value)
	}
	if len(details) > 0 {
		parts = append(parts, sentence("Details: "+strings.Join(details, "; ")))
	}

	if len(change.AffectedAreas) > 0 {
		parts = append(parts, sentence("Affected areas: "+strings.Join(change.AffectedAreas, ", ")))
	}

	if disc.Redacted > 0 {
		noun := "details"
		if disc.Redacted == 1 {
			noun = "detail"
		}
		parts = append(parts, fmt.Sprintf("%d %s withheld at your clearance.", disc.Redacted, noun))
	}
	return strings.Join(parts, " ")
}

func subject(change world.Change) string {
	s := string(change.Category)
	if change.Subcategory != "" {
		s += " " + change.Subcategory
	}
	return humanize(s)
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// sentence capitalises s and ends it with a period.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
