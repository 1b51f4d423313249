package models

import "time"

// FeedFormat identifies the wire format of an upstream feed. It is chosen
// at configuration time so the pipeline never has to sniff raw content.
type FeedFormat string

const (
	FormatRSS    FeedFormat = "rss"
	FormatGovXML FeedFormat = "govxml"
	FormatJSON   FeedFormat = "json"
)

// Category buckets an incident by the kind of disruption it describes.
type Category string

const (
	CategoryRoad        Category = "road"
	CategoryRail        Category = "rail"
	CategoryWeather     Category = "weather"
	CategoryUtility     Category = "utility"
	CategoryEnvironment Category = "environment"
	CategoryGov         Category = "gov"
	CategoryTopSignals  Category = "top_signals"
)

// FeedConfig describes one upstream government feed. Configs are created and
// edited out of band; the pipeline reads active configs and writes back the
// watermark after each run.
type FeedConfig struct {
	ID              string     `json:"id" db:"id"`
	Slug            string     `json:"slug" db:"slug"`
	Name            string     `json:"name" db:"name"`
	URL             string     `json:"url" db:"url"`
	Format          FeedFormat `json:"format" db:"format"`
	Active          bool       `json:"active" db:"active"`
	LastSeenPubdate *time.Time `json:"last_seen_pubdate" db:"last_seen_pubdate"`
}

// Incident is a normalized record for one real-world event or notice derived
// from a feed item. ID is content-addressed: the same slug plus the same
// normalized text always produces the same ID, which makes repeated polling
// idempotent under upsert.
type Incident struct {
	ID              string     `json:"id" db:"id"`
	SourceSlug      string     `json:"source_slug" db:"source_slug"`
	Title           string     `json:"title" db:"title"`
	Body            string     `json:"body" db:"body"`
	Category        Category   `json:"category" db:"category"`
	Severity        int        `json:"severity" db:"severity"`
	RelevanceScore  int        `json:"relevance_score" db:"relevance_score"`
	Latitude        *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64   `json:"longitude,omitempty" db:"longitude"`
	StartsAt        *time.Time `json:"starts_at,omitempty" db:"starts_at"`
	SourceUpdatedAt time.Time  `json:"source_updated_at" db:"source_updated_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IncidentQuery represents query parameters for filtering incidents
type IncidentQuery struct {
	IDs         []string   `json:"ids"`
	Sources     []string   `json:"sources"`
	Categories  []Category `json:"categories"`
	MinSeverity int        `json:"min_severity"`
	Since       time.Time  `json:"since"`
	Until       time.Time  `json:"until"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
}

// Matches checks if an incident matches the query criteria
func (q IncidentQuery) Matches(inc Incident) bool {
	if len(q.IDs) > 0 && !contains(q.IDs, inc.ID) {
		return false
	}
	if len(q.Sources) > 0 && !contains(q.Sources, inc.SourceSlug) {
		return false
	}
	if len(q.Categories) > 0 && !containsCategory(q.Categories, inc.Category) {
		return false
	}
	if inc.Severity < q.MinSeverity {
		return false
	}
	if !q.Since.IsZero() && inc.SourceUpdatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && inc.SourceUpdatedAt.After(q.Until) {
		return false
	}
	return true
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func containsCategory(slice []Category, item Category) bool {
	for _, c := range slice {
		if c == item {
			return true
		}
	}
	return false
}

// FeedResult reports the outcome of processing a single feed.
type FeedResult struct {
	Feed      string   `json:"feed"`
	Incidents int      `json:"incidents"`
	Errors    []string `json:"errors,omitempty"`
}

// RunResult aggregates the outcome of one full ingestion run. Partial
// success (some feeds failed) is still a successful run; failure isolation
// is the point.
type RunResult struct {
	RunID          string       `json:"run_id"`
	StartedAt      time.Time    `json:"started_at"`
	DurationMs     int64        `json:"duration_ms"`
	ProcessedFeeds int          `json:"processed_feeds"`
	TotalIncidents int          `json:"total_incidents"`
	Errors         []string     `json:"errors"`
	Results        []FeedResult `json:"results"`
}
