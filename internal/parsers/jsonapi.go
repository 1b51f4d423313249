package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/internal/normalize"
)

// JSONAPIParser handles JSON REST feeds. Two shapes are recognized: a flat
// array of records under "items" or "data" (or at the top level), and the
// hospital wait-time shape keyed by facility. The parser probes each known
// shape before giving up.
type JSONAPIParser struct{}

func NewJSONAPI() *JSONAPIParser {
	return &JSONAPIParser{}
}

// flatRecord is a loosely-typed item from a generic JSON feed. Field names
// vary per agency, so several aliases map onto each logical field.
type flatRecord struct {
	Title       string `json:"title"`
	Heading     string `json:"heading"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Body        string `json:"body"`
	UpdateTime  string `json:"updateTime"`
	PubDate     string `json:"pubDate"`
	Date        string `json:"date"`
}

func (r flatRecord) title() string {
	for _, s := range []string{r.Title, r.Heading, r.Name} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func (r flatRecord) body() string {
	for _, s := range []string{r.Description, r.Content, r.Body} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func (r flatRecord) updated() string {
	for _, s := range []string{r.UpdateTime, r.PubDate, r.Date} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// envelope covers the known top-level shapes in one decode.
type envelope struct {
	Items      []flatRecord     `json:"items"`
	Data       []flatRecord     `json:"data"`
	WaitTime   []hospitalRecord `json:"waitTime"`
	UpdateTime string           `json:"updateTime"`
}

// hospitalRecord is one facility's entry in the wait-time feed.
type hospitalRecord struct {
	HospName string `json:"hospName"`
	TopWait  string `json:"topWait"`
}

// Parse probes the known JSON shapes in order. Unknown structures are
// logged and dropped.
func (p *JSONAPIParser) Parse(raw string, feed models.FeedConfig) []models.Incident {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil {
		if len(env.WaitTime) > 0 {
			return p.parseHospital(env, feed)
		}
		if records := firstNonEmpty(env.Items, env.Data); records != nil {
			return p.parseFlat(records, feed)
		}
	}

	// A bare top-level array of records.
	var records []flatRecord
	if err := json.Unmarshal([]byte(raw), &records); err == nil && len(records) > 0 {
		return p.parseFlat(records, feed)
	}

	logger.WithFeed(feed.Slug).Warn("unknown JSON feed structure")
	return nil
}

func (p *JSONAPIParser) parseFlat(records []flatRecord, feed models.FeedConfig) []models.Incident {
	incidents := make([]models.Incident, 0, len(records))
	for _, rec := range records {
		title := rec.title()
		if title == "" {
			continue
		}
		incidents = append(incidents, buildIncident(feed, title, rec.body(), parseFeedTime(rec.updated())))
	}
	return incidents
}

// parseHospital maps each facility's wait estimate onto an incident. The
// numeric wait, when extractable, overrides the keyword-based severity and
// relevance with the wait-time scales.
func (p *JSONAPIParser) parseHospital(env envelope, feed models.FeedConfig) []models.Incident {
	updated := parseFeedTime(env.UpdateTime)

	incidents := make([]models.Incident, 0, len(env.WaitTime))
	for _, rec := range env.WaitTime {
		if strings.TrimSpace(rec.HospName) == "" {
			continue
		}

		title := fmt.Sprintf("%s A&E waiting time: %s", rec.HospName, rec.TopWait)
		inc := buildIncident(feed, title, rec.TopWait, updated)

		if hours, ok := normalize.ParseWaitHours(rec.TopWait); ok {
			inc.Severity = normalize.WaitTimeSeverity(hours)
			inc.RelevanceScore = normalize.WaitTimeRelevance(hours)
		}

		incidents = append(incidents, inc)
	}
	return incidents
}

func firstNonEmpty(lists ...[]flatRecord) []flatRecord {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
