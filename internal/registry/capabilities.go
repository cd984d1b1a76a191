package registry

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/awareness/internal/world"
)

// Tag vocabularies. Each tag maps to the categories it covers.
var (
	accessTagCategories = map[string][]world.Category{
		"political":             {world.CategoryPolitical},
		"government_internal":   {world.CategoryPolitical},
		"policy_documents":      {world.CategoryPolitical},
		"budget_details":        {world.CategoryEconomic},
		"economic":              {world.CategoryEconomic},
		"market_data":           {world.CategoryEconomic},
		"industry_reports":      {world.CategoryEconomic},
		"financial_information": {world.CategoryEconomic},
		"military":              {world.CategoryMilitary},
		"military_intelligence": {world.CategoryMilitary},
		"security_briefings":    {world.CategoryMilitary},
		"tactical_information":  {world.CategoryMilitary},
		"social":                {world.CategorySocial},
		"press_briefings":       {world.CategorySocial, world.CategoryPolitical},
		"public_records":        {world.CategorySocial},
		"investigative_sources": {world.CategorySocial},
		"technological":         {world.CategoryTechnological},
		"research_data":         {world.CategoryTechnological},
		"scientific_reports":    {world.CategoryTechnological},
		"academic_networks":     {world.CategoryTechnological},
		"environmental":         {world.CategoryEnvironmental},
	}

	specialtyCategories = map[string][]world.Category{
		"diplomacy":   {world.CategoryPolitical},
		"policy":      {world.CategoryPolitical},
		"law":         {world.CategoryPolitical},
		"governance":  {world.CategoryPolitical},
		"economics":   {world.CategoryEconomic},
		"finance":     {world.CategoryEconomic},
		"trade":       {world.CategoryEconomic},
		"business":    {world.CategoryEconomic},
		"defense":     {world.CategoryMilitary},
		"strategy":    {world.CategoryMilitary},
		"security":    {world.CategoryMilitary},
		"tactics":     {world.CategoryMilitary},
		"sociology":   {world.CategorySocial},
		"health":      {world.CategorySocial},
		"education":   {world.CategorySocial},
		"culture":     {world.CategorySocial},
		"journalism":  {world.CategorySocial},
		"science":     {world.CategoryTechnological},
		"research":    {world.CategoryTechnological},
		"engineering": {world.CategoryTechnological},
		"technology":  {world.CategoryTechnological},
		"climate":     {world.CategoryEnvironmental},
		"ecology":     {world.CategoryEnvironmental},
		"resources":   {world.CategoryEnvironmental},
	}

	sourceCategories = map[string][]world.Category{
		"government_briefings":    {world.CategoryPolitical},
		"internal_reports":        {world.CategoryPolitical},
		"diplomatic_circles":      {world.CategoryPolitical},
		"intelligence_briefings":  {world.CategoryMilitary},
		"military_communications": {world.CategoryMilitary},
		"defense_networks":        {world.CategoryMilitary},
		"market_intelligence":     {world.CategoryEconomic},
		"trade_organizations":     {world.CategoryEconomic},
		"research_publications":   {world.CategoryTechnological},
		"research_institutions":   {world.CategoryTechnological},
		"press_releases":          {world.CategorySocial},
		"source_networks":         {world.CategorySocial},
		"environmental_agencies":  {world.CategoryEnvironmental},
	}
)

// officialAccessTags mark a subscriber as a government official.
var officialAccessTags = []string{"government_internal", "policy_documents"}

// DeriveCapabilities computes the capability set of a normalised profile.
// The strongest match per category wins.
func DeriveCapabilities(p world.SubscriberProfile) world.Capabilities {
	caps := world.Capabilities{Matches: make(map[world.Category]world.Match)}

	raise := func(tags []string, vocab map[string][]world.Category, m world.Match) {
		for _, tag := range tags {
			for _, c := range vocab[tag] {
				if caps.Matches[c] < m {
					caps.Matches[c] = m
				}
			}
		}
	}
	raise(p.Sources, sourceCategories, world.MatchSource)
	raise(p.Specialties, specialtyCategories, world.MatchSpecialty)
	raise(p.AccessTags, accessTagCategories, world.MatchDirect)

	caps.Official = p.Archetype == ArchetypeOfficial
	for _, tag := range officialAccessTags {
		if p.HasAccessTag(tag) {
			caps.Official = true
		}
	}
	return caps
}

// NormalizeTags lower-cases, NFC-normalises, and de-duplicates tags.
// Spaces and hyphens become underscores. Output is sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := normalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalizeTag(t string) string {
	t = norm.NFC.String(strings.TrimSpace(t))
	// Casers are stateful; one per call keeps this goroutine-safe.
	t = cases.Lower(language.Und).String(t)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(t)
}
