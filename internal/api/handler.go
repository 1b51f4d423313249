package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicfeed/civicfeed/config"
	apperrors "github.com/civicfeed/civicfeed/internal/errors"
	"github.com/civicfeed/civicfeed/internal/logger"
	middlewares "github.com/civicfeed/civicfeed/internal/middleware"
	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/internal/readmodel"
	"github.com/civicfeed/civicfeed/internal/store"
)

// Runner triggers an ingestion run. Concurrent triggers are coalesced by
// the pipeline itself.
type Runner interface {
	Run(ctx context.Context) (*models.RunResult, error)
}

// Summarizer serves the cached incident summary.
type Summarizer interface {
	Summary(ctx context.Context) (*readmodel.Summary, error)
}

// Handler handles HTTP requests for the API
type Handler struct {
	store     store.Store
	runner    Runner
	summaries Summarizer
	authCfg   config.AuthConfig
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(store store.Store, runner Runner, summaries Summarizer, authCfg config.AuthConfig, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:     store,
		runner:    runner,
		summaries: summaries,
		authCfg:   authCfg,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// API endpoints
		r.Get("/incidents", h.getIncidentsHandler)
		r.Get("/incidents/{id}", h.getIncidentHandler)
		r.Get("/summary", h.getSummaryHandler)

		// Ingestion trigger (admin token protected)
		r.With(middlewares.AdminAuth(h.authCfg)).Post("/ingest/run", h.triggerRunHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK

	// Check store health
	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// triggerRunHandler handles POST /ingest/run
func (h *Handler) triggerRunHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoActiveFeeds) {
			h.writeErrorResponse(w, r, http.StatusConflict, "no active feeds configured")
			return
		}
		logger.WithContext(ctx).Error("Ingestion run failed", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Per-feed failures do not fail the run. A run that produced a result
	// succeeded; its error list carries the feeds that did not make it.
	response := map[string]interface{}{
		"success": true,
		"run":     result,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// getSummaryHandler handles GET /summary
func (h *Handler) getSummaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.summaries.Summary(ctx)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to load summary", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, summary)
}

// getIncidentsHandler handles GET /incidents
func (h *Handler) getIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseIncidentQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	incidents, err := h.store.QueryIncidents(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query incidents", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"data":      incidents,
		"count":     len(incidents),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getIncidentHandler handles GET /incidents/{id}
func (h *Handler) getIncidentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	incidentID := chi.URLParam(r, "id")

	if incidentID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "incident ID is required")
		return
	}

	incident, err := h.store.GetIncident(ctx, incidentID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get incident", "error", err, "incident_id", incidentID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	if incident == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Incident not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, incident)
}

// parseIncidentQuery parses query parameters into IncidentQuery
func (h *Handler) parseIncidentQuery(r *http.Request) (models.IncidentQuery, error) {
	q := models.IncidentQuery{}

	// Parse limit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return q, fmt.Errorf("invalid limit: %s", limitStr)
		}
		if limit < 0 || limit > 1000 {
			return q, fmt.Errorf("limit must be between 0 and 1000")
		}
		q.Limit = limit
	}

	// Parse offset
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return q, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return q, fmt.Errorf("offset must be non-negative")
		}
		q.Offset = offset
	}

	// Parse minimum severity
	if sevStr := r.URL.Query().Get("min_severity"); sevStr != "" {
		sev, err := strconv.Atoi(sevStr)
		if err != nil {
			return q, fmt.Errorf("invalid min_severity: %s", sevStr)
		}
		if sev < 0 || sev > 10 {
			return q, fmt.Errorf("min_severity must be between 0 and 10")
		}
		q.MinSeverity = sev
	}

	// Parse time filters
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("invalid since format: %s", sinceStr)
		}
		q.Since = since
	}

	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return q, fmt.Errorf("invalid until format: %s", untilStr)
		}
		q.Until = until
	}

	// Parse array filters
	q.IDs = r.URL.Query()["id"]
	q.Sources = r.URL.Query()["source"]
	for _, c := range r.URL.Query()["category"] {
		q.Categories = append(q.Categories, models.Category(c))
	}

	return q, nil
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
