package smoke

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/civicfeed/civicfeed/config"
	"github.com/civicfeed/civicfeed/internal/api"
	"github.com/civicfeed/civicfeed/internal/models"
	"github.com/civicfeed/civicfeed/internal/readmodel"
	"github.com/civicfeed/civicfeed/internal/store"
)

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context) (*models.RunResult, error) {
	return &models.RunResult{RunID: "smoke"}, nil
}

func TestHealthAndIncidentsSmoke(t *testing.T) {
	st := store.NewInMemoryStore()
	rm, err := readmodel.New("", st)
	if err != nil {
		t.Fatalf("readmodel.New: %v", err)
	}
	h := api.NewHandler(st, noopRunner{}, rm, config.AuthConfig{}, "dev", time.Now().Format(time.RFC3339), "git")
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/health", nil))
	if rec.Code != 200 {
		t.Fatalf("/v1/health %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, httptest.NewRequest("GET", "/v1/incidents", nil))
	if rec2.Code != 200 {
		t.Fatalf("/v1/incidents %d", rec2.Code)
	}

	rec3 := httptest.NewRecorder()
	r.ServeHTTP(rec3, httptest.NewRequest("GET", "/v1/summary", nil))
	if rec3.Code != 200 {
		t.Fatalf("/v1/summary %d", rec3.Code)
	}
}
