package parsers

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/models"
)

// GovXMLParser handles the transport authority's bespoke XML schema: a
// <list> root with repeated <message> nodes. Unlike RSS there is no stable
// per-item GUID, which is why incident identity is content-hashed.
type GovXMLParser struct{}

func NewGovXML() *GovXMLParser {
	return &GovXMLParser{}
}

type govXMLList struct {
	XMLName  xml.Name        `xml:"list"`
	Messages []govXMLMessage `xml:"message"`
}

type govXMLMessage struct {
	Heading    string `xml:"heading"`
	Detail     string `xml:"detail"`
	Latitude   string `xml:"latitude"`
	Longitude  string `xml:"longitude"`
	Severity   string `xml:"severity"`
	StartTime  string `xml:"startTime"`
	UpdateTime string `xml:"updateTime"`
}

// Parse maps each <message> node onto an incident. An upstream severity is
// preferred when it is numeric and in range; otherwise severity is computed
// from the text like every other feed.
func (p *GovXMLParser) Parse(raw string, feed models.FeedConfig) []models.Incident {
	var doc govXMLList
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		logger.WithFeed(feed.Slug).Warn("malformed government XML feed", "error", err)
		return nil
	}

	incidents := make([]models.Incident, 0, len(doc.Messages))
	for _, msg := range doc.Messages {
		if strings.TrimSpace(msg.Heading) == "" {
			continue
		}

		inc := buildIncident(feed, msg.Heading, msg.Detail, parseFeedTime(msg.UpdateTime))

		if sev, ok := parseUpstreamSeverity(msg.Severity); ok {
			inc.Severity = sev
		}
		if lat, ok := parseCoordinate(msg.Latitude); ok {
			inc.Latitude = &lat
		}
		if lng, ok := parseCoordinate(msg.Longitude); ok {
			inc.Longitude = &lng
		}
		if t, ok := tryParseFeedTime(msg.StartTime); ok {
			inc.StartsAt = &t
		}

		incidents = append(incidents, inc)
	}
	return incidents
}

// parseUpstreamSeverity accepts the feed's own severity field when it is a
// number on our 0-9 scale.
func parseUpstreamSeverity(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 9 {
		return 0, false
	}
	return n, true
}

func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
