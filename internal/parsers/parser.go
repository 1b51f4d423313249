// Package parsers contains the format-specific adapters that turn raw
// fetched feed bodies into normalized incidents. Every adapter shares the
// same failure-isolation contract: malformed input is logged and yields an
// empty list, never an error that could abort the batch.
package parsers

import (
	"strings"
	"time"

	"github.com/civicfeed/civicfeed/internal/identity"
	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/internal/normalize"
)

// Parser turns one raw feed body into normalized incidents.
type Parser interface {
	Parse(raw string, feed models.FeedConfig) []models.Incident
}

// ForFeed returns the parser for a feed's configured format. Feeds without
// a format fall back to content sniffing with a logged warning; sniffing is
// a last resort, the format belongs on the config.
func ForFeed(feed models.FeedConfig) Parser {
	switch feed.Format {
	case models.FormatRSS:
		return NewRSS()
	case models.FormatGovXML:
		return NewGovXML()
	case models.FormatJSON:
		return NewJSONAPI()
	default:
		logger.WithFeed(feed.Slug).Warn("feed has no configured format, sniffing content")
		return sniffingParser{}
	}
}

// Sniff guesses a feed format from the first bytes of raw content.
func Sniff(raw string) models.FeedFormat {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return models.FormatJSON
	case strings.Contains(trimmed[:min(len(trimmed), 256)], "<rss") || strings.Contains(trimmed[:min(len(trimmed), 256)], "<feed"):
		return models.FormatRSS
	case strings.HasPrefix(trimmed, "<"):
		return models.FormatGovXML
	default:
		return ""
	}
}

// sniffingParser defers the format decision until the content is in hand.
type sniffingParser struct{}

func (sniffingParser) Parse(raw string, feed models.FeedConfig) []models.Incident {
	switch Sniff(raw) {
	case models.FormatJSON:
		return NewJSONAPI().Parse(raw, feed)
	case models.FormatRSS:
		return NewRSS().Parse(raw, feed)
	case models.FormatGovXML:
		return NewGovXML().Parse(raw, feed)
	default:
		logger.WithFeed(feed.Slug).Warn("unable to sniff feed format, dropping content")
		return nil
	}
}

// buildIncident assembles a normalized incident from cleaned parts. ID is
// derived from content only, never from upstream sequence numbers or the
// fetch time, so re-fetching unchanged upstream state yields the same IDs.
func buildIncident(feed models.FeedConfig, title, body string, updatedAt time.Time) models.Incident {
	title = normalize.CleanTitle(title)
	body = normalize.CleanTitle(body) // same cleaning; bodies are snippets, not articles

	return models.Incident{
		ID:              identity.GenerateID(feed.Slug, title, body),
		SourceSlug:      feed.Slug,
		Title:           title,
		Body:            body,
		Category:        normalize.MapCategory(feed.Slug, title, body),
		Severity:        normalize.CalculateSeverity(title, body),
		RelevanceScore:  normalize.CalculateRelevance(title, body, feed.Slug),
		SourceUpdatedAt: updatedAt,
	}
}

// feedTimeLayouts are the timestamp shapes seen across government feeds.
var feedTimeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2/1/2006 3:04pm",
	"2/1/2006 15:04",
}

// tryParseFeedTime parses an upstream timestamp, trying each known layout.
func tryParseFeedTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range feedTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// parseFeedTime is tryParseFeedTime with a now-fallback, for the update
// timestamp only: an unparseable or missing value makes the item fresh
// rather than silently dropped by the incremental filter. Optional fields
// like a start time must use tryParseFeedTime and stay unset instead.
func parseFeedTime(s string) time.Time {
	if t, ok := tryParseFeedTime(s); ok {
		return t
	}
	return time.Now().UTC()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
