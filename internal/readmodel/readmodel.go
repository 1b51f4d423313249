package readmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/models"
)

const (
	summaryKey    = "civicfeed:summary"
	summaryTTL    = 24 * time.Hour
	summaryWindow = 24 * time.Hour
	latestCount   = 20
)

// IncidentSource is the slice of the store the read model derives from.
type IncidentSource interface {
	QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error)
}

// Summary is the denormalized view served to dashboards. It is recomputed
// after each ingestion run and cached in Redis.
type Summary struct {
	GeneratedAt    time.Time               `json:"generated_at"`
	WindowHours    int                     `json:"window_hours"`
	TotalIncidents int                     `json:"total_incidents"`
	ByCategory     map[models.Category]int `json:"by_category"`
	Latest         []models.Incident       `json:"latest"`
}

// ReadModel maintains a Redis-cached incident summary. With no Redis
// configured it computes summaries directly from the store on demand.
type ReadModel struct {
	redis *redis.Client
	store IncidentSource
}

// New connects to Redis when a URL is configured. An empty URL returns a
// cacheless read model rather than an error.
func New(redisURL string, store IncidentSource) (*ReadModel, error) {
	if redisURL == "" {
		logger.Info("REDIS_URL not set; read model summaries computed on demand")
		return &ReadModel{store: store}, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &ReadModel{redis: client, store: store}, nil
}

// Close releases the Redis connection if one exists.
func (r *ReadModel) Close() error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Close()
}

// Refresh recomputes the summary and caches it. Callers treat failures as
// non-fatal; the ingested incidents are already durable in the store.
func (r *ReadModel) Refresh(ctx context.Context) error {
	summary, err := r.compute(ctx)
	if err != nil {
		return err
	}
	if r.redis == nil {
		return nil
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := r.redis.Set(ctx, summaryKey, payload, summaryTTL).Err(); err != nil {
		return fmt.Errorf("cache summary: %w", err)
	}
	return nil
}

// Summary returns the cached summary, recomputing on a cache miss or when
// Redis is not configured.
func (r *ReadModel) Summary(ctx context.Context) (*Summary, error) {
	if r.redis != nil {
		payload, err := r.redis.Get(ctx, summaryKey).Bytes()
		if err == nil {
			var s Summary
			if err := json.Unmarshal(payload, &s); err == nil {
				return &s, nil
			}
			logger.Warn("Discarding unreadable cached summary")
		} else if err != redis.Nil {
			logger.Warn("Summary cache read failed", "error", err)
		}
	}

	summary, err := r.compute(ctx)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *ReadModel) compute(ctx context.Context) (*Summary, error) {
	now := time.Now().UTC()
	incidents, err := r.store.QueryIncidents(ctx, models.IncidentQuery{
		Since: now.Add(-summaryWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("query incidents for summary: %w", err)
	}

	s := &Summary{
		GeneratedAt:    now,
		WindowHours:    int(summaryWindow / time.Hour),
		TotalIncidents: len(incidents),
		ByCategory:     make(map[models.Category]int),
	}
	for _, inc := range incidents {
		s.ByCategory[inc.Category]++
	}
	if len(incidents) > latestCount {
		incidents = incidents[:latestCount]
	}
	s.Latest = incidents
	return s, nil
}
