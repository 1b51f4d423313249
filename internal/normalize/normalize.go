// Package normalize holds the pure text-normalization and scoring heuristics
// applied to every feed item. All classification is driven by ordered rule
// tables so the heuristics are data, not code, and each table is unit-testable
// in isolation.
package normalize

import (
	"strings"

	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/pkg/utils"
)

// maxTitleLen caps cleaned titles. Upstream occasionally ships entire
// paragraphs in the title field.
const maxTitleLen = 200

// CleanTitle trims, collapses whitespace and newlines into single spaces,
// and truncates to maxTitleLen runes. Never fails; empty input yields "".
func CleanTitle(title string) string {
	return utils.TruncateRunes(utils.CollapseWhitespace(title), maxTitleLen)
}

// slugRule maps a feed-slug prefix to a category. Checked in order, first
// match wins. Slug rules take priority over keyword rules because the feed's
// owning agency is a stronger signal than its wording.
type slugRule struct {
	prefix   string
	category models.Category
}

var slugRules = []slugRule{
	{"td_", models.CategoryRoad},       // Transport Department
	{"td", models.CategoryRoad},
	{"mtr", models.CategoryRail},
	{"kmb", models.CategoryRoad},
	{"hko", models.CategoryWeather},    // Observatory
	{"wsd", models.CategoryUtility},    // Water Supplies
	{"emsd", models.CategoryUtility},
	{"clp", models.CategoryUtility},
	{"epd", models.CategoryEnvironment},
	{"ha_", models.CategoryTopSignals}, // Hospital Authority wait times
	{"gov", models.CategoryGov},
	{"info", models.CategoryGov},
}

// keywordRule shifts the category when the combined title+body text carries
// a term more specific than the feed's default bucket.
type keywordRule struct {
	keywords []string
	category models.Category
}

var keywordRules = []keywordRule{
	{[]string{"earthquake", "typhoon", "rainstorm", "thunderstorm", "地震", "颱風"}, models.CategoryWeather},
	{[]string{"fraud", "scam", "phishing", "騙案"}, models.CategoryUtility},
	{[]string{"train", "railway", "港鐵"}, models.CategoryRail},
	{[]string{"flooding", "landslide", "水浸"}, models.CategoryEnvironment},
}

// defaultCategory is the documented fallback when no rule matches.
const defaultCategory = models.CategoryRoad

// MapCategory classifies an incident. The slug-prefix rules pick the base
// bucket for the owning agency, then keyword shifts over the lower-cased
// title+body may override it (an earthquake notice is weather no matter who
// published it). Total and deterministic.
func MapCategory(slug, title, body string) models.Category {
	category := defaultCategory
	for _, r := range slugRules {
		if strings.HasPrefix(slug, r.prefix) {
			category = r.category
			break
		}
	}
	text := strings.ToLower(title + " " + body)
	for _, r := range keywordRules {
		if utils.ContainsAny(text, r.keywords) {
			return r.category
		}
	}
	return category
}

// severityTier is one band of the severity scale. Tiers are checked top
// down; the first tier with a matching keyword wins.
type severityTier struct {
	score    int
	keywords []string
}

var severityTiers = []severityTier{
	{8, []string{"emergency", "critical", "closed", "suspended", "cancelled", "緊急", "暫停", "封閉"}},
	{5, []string{"delayed", "disrupted", "warning", "accident", "incident", "延誤", "事故", "警告"}},
	{2, []string{"notice", "update", "maintenance", "通知", "維修"}},
}

const defaultSeverity = 3

// CalculateSeverity scores an incident 0-9 from its text alone.
func CalculateSeverity(title, body string) int {
	text := strings.ToLower(title + " " + body)
	for _, tier := range severityTiers {
		if utils.ContainsAny(text, tier.keywords) {
			return tier.score
		}
	}
	return defaultSeverity
}

// relevanceRule adds (or subtracts) a fixed amount when any keyword matches.
// Unlike severity tiers, every matching rule contributes.
type relevanceRule struct {
	delta    int
	keywords []string
}

var relevanceRules = []relevanceRule{
	{+30, []string{"emergency", "critical", "緊急"}},
	{+20, []string{"accident", "incident", "事故"}},
	{+15, []string{"delayed", "disrupted", "延誤"}},
	{+10, []string{"warning", "alert", "警告"}},
	{-15, []string{"routine", "scheduled", "例行"}},
	{-10, []string{"maintenance", "維修"}},
}

// sourceBoosts gives operationally critical feeds a flat head start.
var sourceBoosts = []struct {
	prefix string
	delta  int
}{
	{"hko", 15},
	{"td_special", 10},
	{"mtr", 10},
}

const relevanceBase = 50

// CalculateRelevance scores how prominently an incident should surface,
// 0-100. Base score plus keyword boosts and penalties plus per-source
// boosts, clamped to the valid range.
func CalculateRelevance(title, body, slug string) int {
	text := strings.ToLower(title + " " + body)
	score := relevanceBase
	for _, r := range relevanceRules {
		if utils.ContainsAny(text, r.keywords) {
			score += r.delta
		}
	}
	for _, b := range sourceBoosts {
		if strings.HasPrefix(slug, b.prefix) {
			score += b.delta
		}
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
