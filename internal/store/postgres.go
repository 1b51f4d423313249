package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicfeed/civicfeed/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertIncidents inserts or updates incidents keyed on their
// content-addressed ID. Re-upserting identical rows is a no-op in effect;
// on ID collision the last write wins on all fields.
func (s *PostgresStore) UpsertIncidents(ctx context.Context, incidents []models.Incident) (int, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO incidents (
			id, source_slug, title, body, category, severity,
			relevance_score, latitude, longitude, starts_at, source_updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			category = EXCLUDED.category,
			severity = EXCLUDED.severity,
			relevance_score = EXCLUDED.relevance_score,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			starts_at = EXCLUDED.starts_at,
			source_updated_at = EXCLUDED.source_updated_at,
			updated_at = NOW()
	`

	for _, inc := range incidents {
		err := s.db.Exec(ctx, query,
			inc.ID, inc.SourceSlug, inc.Title, inc.Body, inc.Category,
			inc.Severity, inc.RelevanceScore, inc.Latitude, inc.Longitude,
			inc.StartsAt, inc.SourceUpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert incident %s: %w", inc.ID, err)
		}
	}

	return len(incidents), nil
}

// QueryIncidents retrieves incidents based on query parameters
func (s *PostgresStore) QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error) {
	query := `
		SELECT id, source_slug, title, body, category, severity,
			   relevance_score, latitude, longitude, starts_at,
			   source_updated_at, created_at, updated_at
		FROM incidents
		WHERE 1=1
	`

	var args []interface{}
	argIndex := 1

	if len(q.IDs) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d)", argIndex)
		args = append(args, q.IDs)
		argIndex++
	}

	if len(q.Sources) > 0 {
		query += fmt.Sprintf(" AND source_slug = ANY($%d)", argIndex)
		args = append(args, q.Sources)
		argIndex++
	}

	if len(q.Categories) > 0 {
		cats := make([]string, len(q.Categories))
		for i, c := range q.Categories {
			cats[i] = string(c)
		}
		query += fmt.Sprintf(" AND category = ANY($%d)", argIndex)
		args = append(args, cats)
		argIndex++
	}

	if q.MinSeverity > 0 {
		query += fmt.Sprintf(" AND severity >= $%d", argIndex)
		args = append(args, q.MinSeverity)
		argIndex++
	}

	if !q.Since.IsZero() {
		query += fmt.Sprintf(" AND source_updated_at >= $%d", argIndex)
		args = append(args, q.Since)
		argIndex++
	}

	if !q.Until.IsZero() {
		query += fmt.Sprintf(" AND source_updated_at <= $%d", argIndex)
		args = append(args, q.Until)
		argIndex++
	}

	query += " ORDER BY source_updated_at DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}

	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, q.Offset)
	}

	rowsInterface, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		var inc models.Incident
		err := rows.Scan(
			&inc.ID, &inc.SourceSlug, &inc.Title, &inc.Body, &inc.Category,
			&inc.Severity, &inc.RelevanceScore, &inc.Latitude, &inc.Longitude,
			&inc.StartsAt, &inc.SourceUpdatedAt, &inc.CreatedAt, &inc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}

	return incidents, nil
}

// GetIncident retrieves a single incident by ID
func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	query := `
		SELECT id, source_slug, title, body, category, severity,
			   relevance_score, latitude, longitude, starts_at,
			   source_updated_at, created_at, updated_at
		FROM incidents
		WHERE id = $1
	`

	rowInterface := s.db.QueryRow(ctx, query, id)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return nil, fmt.Errorf("invalid row type")
	}

	var inc models.Incident
	err := row.Scan(
		&inc.ID, &inc.SourceSlug, &inc.Title, &inc.Body, &inc.Category,
		&inc.Severity, &inc.RelevanceScore, &inc.Latitude, &inc.Longitude,
		&inc.StartsAt, &inc.SourceUpdatedAt, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	return &inc, nil
}

// ListActiveFeeds returns active feed configs ordered by slug for
// deterministic processing order.
func (s *PostgresStore) ListActiveFeeds(ctx context.Context) ([]models.FeedConfig, error) {
	query := `
		SELECT id, slug, name, url, format, active, last_seen_pubdate
		FROM feed_configs
		WHERE active = TRUE
		ORDER BY slug
	`

	rowsInterface, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query feed configs: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var feeds []models.FeedConfig
	for rows.Next() {
		var fc models.FeedConfig
		err := rows.Scan(&fc.ID, &fc.Slug, &fc.Name, &fc.URL, &fc.Format, &fc.Active, &fc.LastSeenPubdate)
		if err != nil {
			return nil, fmt.Errorf("scan feed config: %w", err)
		}
		feeds = append(feeds, fc)
	}

	return feeds, nil
}

// UpdateLastSeen advances a feed's watermark.
func (s *PostgresStore) UpdateLastSeen(ctx context.Context, feedID string, ts time.Time) error {
	query := `UPDATE feed_configs SET last_seen_pubdate = $2 WHERE id = $1`
	if err := s.db.Exec(ctx, query, feedID, ts); err != nil {
		return fmt.Errorf("update last seen for feed %s: %w", feedID, err)
	}
	return nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
