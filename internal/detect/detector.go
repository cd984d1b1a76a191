package detect

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/awareness/internal/world"
)

// FieldWarning reports a field that could not be compared.
// Warnings are soft: detection continues with the remaining fields.
type FieldWarning struct {
	Version  int64
	Category world.Category
	Field    string
	Reason   string
}

func (w FieldWarning) Error() string {
	return fmt.Sprintf("snapshot v%d %s.%s: %s", w.Version, w.Category, w.Field, w.Reason)
}

// Result holds the output of one detection pass.
type Result struct {
	Changes  []world.Change
	Warnings []FieldWarning
}

// Detector applies a rule table to snapshot pairs.
//
// Thread-safety: a Detector is immutable after New and safe for
// concurrent use.
type Detector struct {
	byCategory map[world.Category][]FieldRule
}

// New builds a detector from rules. With no rules the default table is used.
func New(rules ...FieldRule) *Detector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	d := &Detector{byCategory: make(map[world.Category][]FieldRule)}
	for _, r := range rules {
		d.byCategory[r.Category] = append(d.byCategory[r.Category], r)
	}
	return d
}

var defaultDetector = New()

// Detect runs the default rule table over a snapshot pair.
func Detect(prev, cur *world.Snapshot) Result {
	return defaultDetector.Detect(prev, cur)
}

// Detect compares prev and cur. A nil prev (first run) or nil cur yields an
// empty result.
func (d *Detector) Detect(prev, cur *world.Snapshot) Result {
	var res Result
	if prev == nil || cur == nil {
		return res
	}

	for _, cat := range world.Categories {
		ps, cs := prev.Section(cat), cur.Section(cat)
		if ps == nil && cs == nil {
			continue
		}
		if ps == nil || cs == nil {
			res.Warnings = append(res.Warnings, FieldWarning{
				Version:  cur.Version,
				Category: cat,
				Field:    "*",
				Reason:   "section missing in " + missingSide(ps == nil),
			})
			continue
		}

		for _, rule := range d.byCategory[cat] {
			ch, warn, ok := compareField(rule, ps, cs, cur)
			if warn != nil {
				res.Warnings = append(res.Warnings, *warn)
			}
			if ok {
				res.Changes = append(res.Changes, ch)
			}
		}

		changes, warns := compareLists(cat, ps, cs, cur)
		res.Changes = append(res.Changes, changes...)
		res.Warnings = append(res.Warnings, warns...)
	}
	return res
}

func missingSide(previous bool) string {
	if previous {
		return "previous snapshot"
	}
	return "current snapshot"
}

func compareField(rule FieldRule, ps, cs *world.Section, cur *world.Snapshot) (world.Change, *FieldWarning, bool) {
	pv, pok := ps.Fields[rule.Field]
	cv, cok := cs.Fields[rule.Field]
	if !pok && !cok {
		return world.Change{}, nil, false
	}
	warn := func(reason string) *FieldWarning {
		return &FieldWarning{Version: cur.Version, Category: rule.Category, Field: rule.Field, Reason: reason}
	}
	if !pok || !cok {
		return world.Change{}, warn("field missing in " + missingSide(!pok)), false
	}

	if rule.Kind == KindEnum {
		return compareEnum(rule, pv, cv, cs, cur, warn)
	}

	prevNum, ok := toFloat(pv)
	if !ok {
		return world.Change{}, warn(fmt.Sprintf("previous value %v is not numeric", pv)), false
	}
	curNum, ok := toFloat(cv)
	if !ok {
		return world.Change{}, warn(fmt.Sprintf("current value %v is not numeric", cv)), false
	}

	diff := curNum - prevNum
	if diff == 0 {
		return world.Change{}, nil, false
	}

	var measure, magnitude float64
	impact := world.ImpactModerate
	switch rule.Kind {
	case KindRelative:
		if prevNum == 0 {
			// No base to compare against; any movement off zero counts.
			magnitude = 0
			break
		}
		measure = math.Abs(diff) / math.Abs(prevNum)
		if measure < rule.Threshold-thresholdTolerance {
			return world.Change{}, nil, false
		}
		magnitude = measure / rule.Threshold
		impact = impactForMagnitude(magnitude + thresholdTolerance)
	default:
		measure = math.Abs(diff)
		if measure < rule.Threshold-thresholdTolerance {
			return world.Change{}, nil, false
		}
		magnitude = measure / rule.Threshold
		impact = impactForMagnitude(magnitude + thresholdTolerance)
	}

	return world.Change{
		Category:      rule.Category,
		Subcategory:   rule.Subcategory,
		Description:   describeNumeric(rule, prevNum, curNum),
		Impact:        impact,
		AffectedAreas: world.AreaSet(cs.Areas),
		Timestamp:     cur.TakenAt,
		RawDelta: world.Delta{
			Field:     rule.Field,
			Previous:  prevNum,
			Current:   curNum,
			Magnitude: magnitude,
		},
		Payload: []world.PayloadField{
			{Key: "field", Value: rule.Field, Tier: world.TierPublic},
			{Key: "previous", Value: formatNumber(prevNum), Tier: rule.Sensitivity},
			{Key: "current", Value: formatNumber(curNum), Tier: rule.Sensitivity},
			{Key: "change", Value: formatDiff(rule, prevNum, diff), Tier: rule.Sensitivity},
		},
		Source:  world.SourceDetected,
		Version: cur.Version,
	}, nil, true
}

func compareEnum(rule FieldRule, pv, cv any, cs *world.Section, cur *world.Snapshot, warn func(string) *FieldWarning) (world.Change, *FieldWarning, bool) {
	prevStr, ok := pv.(string)
	if !ok {
		return world.Change{}, warn(fmt.Sprintf("previous value %v is not a string", pv)), false
	}
	curStr, ok := cv.(string)
	if !ok {
		return world.Change{}, warn(fmt.Sprintf("current value %v is not a string", cv)), false
	}
	if prevStr == curStr {
		return world.Change{}, nil, false
	}

	impact, ok := rule.EnumImpact[strings.ToLower(curStr)]
	if !ok {
		impact = rule.DefaultImpact
	}

	name := displayName(rule.Field)
	return world.Change{
		Category:      rule.Category,
		Subcategory:   rule.Subcategory,
		Description:   fmt.Sprintf("%s changed from %s to %s", name, prevStr, curStr),
		Impact:        impact,
		AffectedAreas: world.AreaSet(cs.Areas),
		Timestamp:     cur.TakenAt,
		RawDelta:      world.Delta{Field: rule.Field, Previous: prevStr, Current: curStr},
		Payload: []world.PayloadField{
			{Key: "field", Value: rule.Field, Tier: world.TierPublic},
			{Key: "previous", Value: prevStr, Tier: rule.Sensitivity},
			{Key: "current", Value: curStr, Tier: rule.Sensitivity},
		},
		Source:  world.SourceDetected,
		Version: cur.Version,
	}, nil, true
}

// compareLists emits one change per sub-event id present in cur but not
// in prev. A list absent from prev is treated as empty.
func compareLists(cat world.Category, ps, cs *world.Section, cur *world.Snapshot) ([]world.Change, []FieldWarning) {
	var (
		changes []world.Change
		warns   []FieldWarning
	)
	for _, list := range cs.ListNames() {
		known := make(map[string]struct{}, len(ps.Events[list]))
		for _, ev := range ps.Events[list] {
			known[ev.ID] = struct{}{}
		}

		for i, ev := range cs.Events[list] {
			field := fmt.Sprintf("%s[%d]", list, i)
			if ev.ID == "" {
				warns = append(warns, FieldWarning{Version: cur.Version, Category: cat, Field: field, Reason: "entry has no id"})
				continue
			}
			if _, seen := known[ev.ID]; seen {
				continue
			}
			known[ev.ID] = struct{}{}

			impact := world.ImpactModerate
			if ev.Impact != "" {
				parsed, err := world.ParseImpactLevel(ev.Impact)
				if err != nil {
					warns = append(warns, FieldWarning{Version: cur.Version, Category: cat, Field: field, Reason: err.Error()})
				} else {
					impact = parsed
				}
			}

			tier := world.TierPublic
			if ev.Classification != "" {
				parsed, err := world.ParseTier(ev.Classification)
				if err != nil {
					// Unreadable classification is treated as the most restrictive.
					warns = append(warns, FieldWarning{Version: cur.Version, Category: cat, Field: field, Reason: err.Error()})
					tier = world.TierClassified
				} else {
					tier = parsed
				}
			}

			changes = append(changes, subEventChange(cat, list, ev, impact, tier, cs, cur))
		}
	}
	return changes, warns
}

func subEventChange(cat world.Category, list string, ev world.SubEvent, impact world.ImpactLevel, tier world.Tier, cs *world.Section, cur *world.Snapshot) world.Change {
	title := ev.Title
	if title == "" {
		title = ev.ID
	}

	payload := []world.PayloadField{
		{Key: "event_id", Value: ev.ID, Tier: world.TierPublic},
		{Key: "title", Value: title, Tier: world.TierPublic},
	}
	keys := make([]string, 0, len(ev.Details))
	for k := range ev.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		payload = append(payload, world.PayloadField{Key: k, Value: ev.Details[k], Tier: tier})
	}

	areas := world.AreaSet(ev.Areas)
	if len(areas) == 0 {
		areas = world.AreaSet(cs.Areas)
	}

	return world.Change{
		Category:      cat,
		Subcategory:   list,
		Description:   fmt.Sprintf("new %s: %s", strings.TrimSuffix(displayName(list), "s"), title),
		Impact:        impact,
		AffectedAreas: areas,
		Timestamp:     cur.TakenAt,
		RawDelta:      world.Delta{Field: ev.ID, Current: title},
		Payload:       payload,
		Source:        world.SourceDetected,
		Version:       cur.Version,
	}
}

func describeNumeric(rule FieldRule, prev, cur float64) string {
	verb := "rose"
	if cur < prev {
		verb = "fell"
	}
	return fmt.Sprintf("%s %s from %s to %s", displayName(rule.Field), verb, formatNumber(prev), formatNumber(cur))
}

func formatDiff(rule FieldRule, prev, diff float64) string {
	if rule.Kind == KindRelative && prev != 0 {
		return strconv.FormatFloat(diff/math.Abs(prev)*100, 'f', 1, 64) + "%"
	}
	s := formatNumber(diff)
	if diff > 0 {
		s = "+" + s
	}
	return s
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func displayName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// toFloat accepts the numeric types produced by YAML and JSON decoding.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
