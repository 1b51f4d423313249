package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/civicfeed/civicfeed/internal/models"
)

// InMemoryStore implements Store using in-memory storage. Used when no
// database is configured and throughout the test suite.
type InMemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]models.Incident
	feeds     map[string]models.FeedConfig
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		incidents: make(map[string]models.Incident),
		feeds:     make(map[string]models.FeedConfig),
	}
}

// SeedFeeds loads feed configs into the store. Development and test helper;
// in production configs come from the admin tooling via Postgres.
func (s *InMemoryStore) SeedFeeds(feeds []models.FeedConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range feeds {
		s.feeds[f.ID] = f
	}
}

// UpsertIncidents stores incidents keyed on ID, last write wins.
func (s *InMemoryStore) UpsertIncidents(ctx context.Context, incidents []models.Incident) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, inc := range incidents {
		if existing, ok := s.incidents[inc.ID]; ok {
			inc.CreatedAt = existing.CreatedAt
		} else {
			inc.CreatedAt = now
		}
		inc.UpdatedAt = now
		s.incidents[inc.ID] = inc
	}

	return len(incidents), nil
}

// QueryIncidents retrieves incidents matching the query parameters
func (s *InMemoryStore) QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Incident
	for _, inc := range s.incidents {
		if q.Matches(inc) {
			result = append(result, inc)
		}
	}

	// Sort by SourceUpdatedAt descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].SourceUpdatedAt.After(result[j].SourceUpdatedAt)
	})

	if q.Offset > 0 && q.Offset < len(result) {
		result = result[q.Offset:]
	} else if q.Offset >= len(result) && q.Offset > 0 {
		result = []models.Incident{}
	}

	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	return result, nil
}

// GetIncident retrieves a single incident by ID
func (s *InMemoryStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inc, exists := s.incidents[id]; exists {
		return &inc, nil
	}

	return nil, nil
}

// ListActiveFeeds returns active feed configs ordered by slug.
func (s *InMemoryStore) ListActiveFeeds(ctx context.Context) ([]models.FeedConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var feeds []models.FeedConfig
	for _, f := range s.feeds {
		if f.Active {
			feeds = append(feeds, f)
		}
	}

	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].Slug < feeds[j].Slug
	})

	return feeds, nil
}

// UpdateLastSeen advances a feed's watermark.
func (s *InMemoryStore) UpdateLastSeen(ctx context.Context, feedID string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[feedID]
	if !ok {
		return fmt.Errorf("feed %s not found", feedID)
	}
	t := ts
	f.LastSeenPubdate = &t
	s.feeds[feedID] = f
	return nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
