package parsers

import (
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/models"
)

// RSSParser handles RSS 2.0 and Atom feeds by delegating to gofeed.
type RSSParser struct {
	parser *gofeed.Parser
}

func NewRSS() *RSSParser {
	return &RSSParser{parser: gofeed.NewParser()}
}

// Parse maps each feed entry onto an incident. Malformed feeds are logged
// and yield an empty list.
func (p *RSSParser) Parse(raw string, feed models.FeedConfig) []models.Incident {
	parsed, err := p.parser.ParseString(raw)
	if err != nil {
		logger.WithFeed(feed.Slug).Warn("malformed RSS/Atom feed", "error", err)
		return nil
	}

	incidents := make([]models.Incident, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || item.Title == "" {
			continue
		}

		var updated time.Time
		switch {
		case item.UpdatedParsed != nil:
			updated = item.UpdatedParsed.UTC()
		case item.PublishedParsed != nil:
			updated = item.PublishedParsed.UTC()
		default:
			updated = time.Now().UTC()
		}

		incidents = append(incidents, buildIncident(feed, item.Title, item.Description, updated))
	}
	return incidents
}
