package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civicfeed/civicfeed/config"
	"github.com/civicfeed/civicfeed/internal/auth"
	apperrors "github.com/civicfeed/civicfeed/internal/errors"
	"github.com/civicfeed/civicfeed/internal/logger"
	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/internal/readmodel"
)

type fakeStore struct {
	incidents []models.Incident
	healthErr error
}

func (f *fakeStore) UpsertIncidents(ctx context.Context, incidents []models.Incident) (int, error) {
	return len(incidents), nil
}

func (f *fakeStore) QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error) {
	var out []models.Incident
	for _, inc := range f.incidents {
		if q.Matches(inc) {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (f *fakeStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	for _, inc := range f.incidents {
		if inc.ID == id {
			c := inc
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListActiveFeeds(ctx context.Context) ([]models.FeedConfig, error) {
	return nil, nil
}

func (f *fakeStore) UpdateLastSeen(ctx context.Context, feedID string, ts time.Time) error {
	return nil
}

func (f *fakeStore) Health(ctx context.Context) error { return f.healthErr }

type fakeRunner struct {
	result *models.RunResult
	err    error
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context) (*models.RunResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSummarizer struct {
	summary *readmodel.Summary
	err     error
}

func (f *fakeSummarizer) Summary(ctx context.Context) (*readmodel.Summary, error) {
	return f.summary, f.err
}

func newTestHandler(t *testing.T, st *fakeStore, runner *fakeRunner, hash string) *chi.Mux {
	t.Helper()
	logger.Init("error", "text")
	summaries := &fakeSummarizer{summary: &readmodel.Summary{GeneratedAt: time.Now().UTC()}}
	h := NewHandler(st, runner, summaries, config.AuthConfig{AdminTokenHash: hash}, "test", "", "")
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestHandler(t, &fakeStore{}, &fakeRunner{}, "")

	for _, path := range []string{"/health", "/v1/health", "/v1/health/live"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestReadiness_StoreFailure(t *testing.T) {
	router := newTestHandler(t, &fakeStore{healthErr: apperrors.ErrTimeout}, &fakeRunner{}, "")

	req := httptest.NewRequest("GET", "/v1/health/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when store unhealthy, got %d", w.Code)
	}
}

func TestGetIncidents(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeStore{incidents: []models.Incident{
		{ID: "a", SourceSlug: "td_news", Category: models.CategoryRoad, Severity: 8, SourceUpdatedAt: now},
		{ID: "b", SourceSlug: "mtr", Category: models.CategoryRail, Severity: 3, SourceUpdatedAt: now},
	}}
	router := newTestHandler(t, st, &fakeRunner{}, "")

	tests := []struct {
		name          string
		url           string
		expectedCode  int
		expectedCount float64
	}{
		{"All incidents", "/v1/incidents", http.StatusOK, 2},
		{"Filter by source", "/v1/incidents?source=mtr", http.StatusOK, 1},
		{"Filter by category", "/v1/incidents?category=road", http.StatusOK, 1},
		{"Filter by min severity", "/v1/incidents?min_severity=5", http.StatusOK, 1},
		{"Invalid limit", "/v1/incidents?limit=abc", http.StatusBadRequest, 0},
		{"Limit too large", "/v1/incidents?limit=9999", http.StatusBadRequest, 0},
		{"Invalid since", "/v1/incidents?since=notatime", http.StatusBadRequest, 0},
		{"Invalid min severity", "/v1/incidents?min_severity=99", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, w.Code)
			}
			if tt.expectedCode != http.StatusOK {
				return
			}

			var body map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if body["count"].(float64) != tt.expectedCount {
				t.Errorf("expected count %v, got %v", tt.expectedCount, body["count"])
			}
		})
	}
}

func TestGetIncident(t *testing.T) {
	st := &fakeStore{incidents: []models.Incident{
		{ID: "known", SourceSlug: "hko", Title: "Typhoon signal 8", Category: models.CategoryWeather},
	}}
	router := newTestHandler(t, st, &fakeRunner{}, "")

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/incidents/known", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var inc models.Incident
		if err := json.Unmarshal(w.Body.Bytes(), &inc); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if inc.ID != "known" {
			t.Errorf("expected ID known, got %s", inc.ID)
		}
	})

	t.Run("Not found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/incidents/missing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestGetSummary(t *testing.T) {
	router := newTestHandler(t, &fakeStore{}, &fakeRunner{}, "")

	req := httptest.NewRequest("GET", "/v1/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	rawToken, hash, err := auth.GenerateAdminToken()
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}

	t.Run("Authorized run", func(t *testing.T) {
		runner := &fakeRunner{result: &models.RunResult{
			RunID:          "run-1",
			ProcessedFeeds: 3,
			TotalIncidents: 7,
		}}
		router := newTestHandler(t, &fakeStore{}, runner, hash)

		req := httptest.NewRequest("POST", "/v1/ingest/run", nil)
		req.Header.Set("Authorization", "Bearer "+rawToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if runner.calls != 1 {
			t.Errorf("expected 1 run, got %d", runner.calls)
		}

		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if body["success"] != true {
			t.Errorf("expected success true, got %v", body["success"])
		}
	})

	t.Run("Partial failure is still a successful run", func(t *testing.T) {
		runner := &fakeRunner{result: &models.RunResult{
			RunID:  "run-2",
			Errors: []string{"feed feed_a: fetch: boom"},
		}}
		router := newTestHandler(t, &fakeStore{}, runner, hash)

		req := httptest.NewRequest("POST", "/v1/ingest/run", nil)
		req.Header.Set("Authorization", "Bearer "+rawToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if body["success"] != true {
			t.Errorf("expected success true despite per-feed errors, got %v", body["success"])
		}
		run, ok := body["run"].(map[string]interface{})
		if !ok {
			t.Fatalf("response missing run payload: %s", w.Body.String())
		}
		errs, ok := run["errors"].([]interface{})
		if !ok || len(errs) != 1 {
			t.Errorf("expected the feed error in the run payload, got %v", run["errors"])
		}
	})

	t.Run("No active feeds", func(t *testing.T) {
		runner := &fakeRunner{err: apperrors.ErrNoActiveFeeds}
		router := newTestHandler(t, &fakeStore{}, runner, hash)

		req := httptest.NewRequest("POST", "/v1/ingest/run", nil)
		req.Header.Set("Authorization", "Bearer "+rawToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", w.Code)
		}
	})

	t.Run("Missing token", func(t *testing.T) {
		runner := &fakeRunner{}
		router := newTestHandler(t, &fakeStore{}, runner, hash)

		req := httptest.NewRequest("POST", "/v1/ingest/run", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		if runner.calls != 0 {
			t.Errorf("expected no runs without auth, got %d", runner.calls)
		}
	})
}
