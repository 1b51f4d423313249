// Package pipeline drives ingestion: it walks the active feed list
// sequentially through fetch, parse, incremental filter and persist, with
// per-feed failure isolation and cooperative rate limiting between feeds.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/civicfeed/civicfeed/config"
	apperrors "github.com/civicfeed/civicfeed/internal/errors"
	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/metrics"
	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/internal/parsers"
)

// Fetcher retrieves one feed body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FeedStore reads feed configuration and writes back watermarks.
type FeedStore interface {
	// ListActiveFeeds returns active configs ordered by slug.
	ListActiveFeeds(ctx context.Context) ([]models.FeedConfig, error)
	UpdateLastSeen(ctx context.Context, feedID string, ts time.Time) error
}

// IncidentStore persists incidents. Upsert is keyed on incident ID and must
// be idempotent.
type IncidentStore interface {
	UpsertIncidents(ctx context.Context, incidents []models.Incident) (int, error)
}

// ReadModel is the derived view refreshed after a run. Refresh failures are
// never escalated; the incident table stays durable and correct without it.
type ReadModel interface {
	Refresh(ctx context.Context) error
}

// Pipeline coordinates sequential feed ingestion.
type Pipeline struct {
	fetcher   Fetcher
	feeds     FeedStore
	incidents IncidentStore
	readModel ReadModel
	cfg       config.PipelineConfig
	limiter   *rate.Limiter
	group     singleflight.Group
}

// New creates a pipeline instance. Feeds are processed one at a time with a
// fixed pause between them; the externally-owned upstream infrastructure is
// shared, so politeness beats throughput here.
func New(fetcher Fetcher, feeds FeedStore, incidents IncidentStore, readModel ReadModel, cfg config.PipelineConfig) *Pipeline {
	delay := cfg.FeedDelay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	return &Pipeline{
		fetcher:   fetcher,
		feeds:     feeds,
		incidents: incidents,
		readModel: readModel,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Run executes one full ingestion pass. Concurrent callers (scheduler tick
// racing an HTTP trigger) are coalesced onto a single in-flight run.
func (p *Pipeline) Run(ctx context.Context) (*models.RunResult, error) {
	v, err, shared := p.group.Do("run", func() (interface{}, error) {
		return p.runOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Ingestion trigger coalesced onto in-flight run")
	}
	return v.(*models.RunResult), nil
}

func (p *Pipeline) runOnce(ctx context.Context) (*models.RunResult, error) {
	start := time.Now()

	feeds, err := p.feeds.ListActiveFeeds(ctx)
	if err != nil {
		return nil, apperrors.PersistError{Op: "list active feeds", Err: err}
	}
	if len(feeds) == 0 {
		return nil, apperrors.ErrNoActiveFeeds
	}

	result := &models.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Errors:    []string{},
		Results:   make([]models.FeedResult, 0, len(feeds)),
	}

	logger.Info("Starting ingestion run", "run_id", result.RunID, "feeds", len(feeds))

	for _, feed := range feeds {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		count, err := p.processFeed(ctx, feed)

		fr := models.FeedResult{Feed: feed.Slug, Incidents: count}
		if err != nil {
			perr := apperrors.PipelineError{Feed: feed.Slug, Stage: stageOf(err), Err: err}
			logger.WithFeed(feed.Slug).Error("Feed processing failed", "stage", perr.Stage, "error", err)
			fr.Errors = append(fr.Errors, perr.Error())
			result.Errors = append(result.Errors, perr.Error())
			metrics.RecordFeedProcessed(feed.Slug, "error")
		} else {
			result.TotalIncidents += count
			metrics.RecordFeedProcessed(feed.Slug, "success")
		}
		result.Results = append(result.Results, fr)
		result.ProcessedFeeds++
	}

	// Best effort: a stale read model is a convenience problem, not a
	// correctness problem.
	if p.readModel != nil {
		if err := p.readModel.Refresh(ctx); err != nil {
			logger.Warn("Read model refresh failed", "error", apperrors.RefreshError{Err: err})
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	metrics.RecordIngestionRun(time.Since(start), result.TotalIncidents)
	logger.Info("Ingestion run complete",
		"run_id", result.RunID,
		"feeds", result.ProcessedFeeds,
		"incidents", result.TotalIncidents,
		"errors", len(result.Errors),
		"duration_ms", result.DurationMs,
	)

	return result, nil
}

// processFeed runs one feed through fetch, parse, filter and persist.
// Returns the number of new incidents persisted.
func (p *Pipeline) processFeed(ctx context.Context, feed models.FeedConfig) (int, error) {
	raw, err := p.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return 0, err
	}

	batch := parsers.ForFeed(feed).Parse(raw, feed)
	if len(batch) == 0 {
		logger.WithFeed(feed.Slug).Debug("No incidents parsed")
		return 0, nil
	}

	fresh := FilterNew(batch, feed, p.cfg.WatermarkTolerance)
	logger.WithFeed(feed.Slug).Debug("Parsed batch", "total", len(batch), "new", len(fresh))

	count := 0
	if len(fresh) > 0 {
		count, err = p.incidents.UpsertIncidents(ctx, fresh)
		if err != nil {
			return 0, apperrors.PersistError{Op: "upsert incidents", Err: err}
		}
	}

	// Advance the watermark to the newest timestamp in the whole parsed
	// batch, not just the filtered subset, so older entries are never
	// reprocessed even when nothing new was kept.
	if latest := latestUpdate(batch); !latest.IsZero() {
		if err := p.feeds.UpdateLastSeen(ctx, feed.ID, latest); err != nil {
			return count, apperrors.PersistError{Op: "update watermark", Err: err}
		}
	}

	return count, nil
}

// FilterNew retains only items newer than the feed's watermark. A feed with
// no watermark is a cold start and backfills everything. The tolerance
// window is subtracted from the watermark before comparing, absorbing the
// skew of near-simultaneous multi-language publications upstream.
func FilterNew(items []models.Incident, feed models.FeedConfig, tolerance time.Duration) []models.Incident {
	if feed.LastSeenPubdate == nil {
		return items
	}
	cutoff := feed.LastSeenPubdate.Add(-tolerance)

	fresh := make([]models.Incident, 0, len(items))
	for _, item := range items {
		if item.SourceUpdatedAt.After(cutoff) {
			fresh = append(fresh, item)
		}
	}
	return fresh
}

func latestUpdate(items []models.Incident) time.Time {
	var latest time.Time
	for _, item := range items {
		if item.SourceUpdatedAt.After(latest) {
			latest = item.SourceUpdatedAt
		}
	}
	return latest
}

// stageOf labels an error with the pipeline stage it came from, for the
// run's error list.
func stageOf(err error) string {
	switch err.(type) {
	case apperrors.FetchError:
		return "fetch"
	case apperrors.PersistError:
		return "persist"
	default:
		return "process"
	}
}

// RunScheduler invokes Run on a fixed interval until the context is
// cancelled. Interval 0 disables scheduling; runs then happen only via the
// HTTP trigger.
func (p *Pipeline) RunScheduler(ctx context.Context) {
	if p.cfg.PollInterval <= 0 {
		logger.Info("Internal scheduler disabled")
		return
	}

	logger.Info("Starting internal scheduler", "interval", p.cfg.PollInterval)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopping")
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				logger.Error("Scheduled ingestion run failed", "error", err)
			}
		}
	}
}
