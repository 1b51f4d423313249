package store

import (
	"context"
	"time"

	"github.com/civicfeed/civicfeed/internal/models"
)

// Store defines the interface for incident and feed-config storage
type Store interface {
	UpsertIncidents(ctx context.Context, incidents []models.Incident) (int, error)
	QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ListActiveFeeds(ctx context.Context) ([]models.FeedConfig, error)
	UpdateLastSeen(ctx context.Context, feedID string, ts time.Time) error
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
