package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolabs/folio/internal/database"
	foliotest "github.com/foliolabs/folio/internal/testing"
)

func newSystemRouter(t *testing.T) *chi.Mux {
	t.Helper()
	databases := map[string]*database.DB{
		"portfolio": foliotest.NewTestDB(t, "portfolio"),
		"cache":     foliotest.NewTestDB(t, "cache"),
	}
	handlers := NewSystemHandlers(databases, nil, t.TempDir(), zerolog.Nop())
	router := chi.NewRouter()
	router.Route("/api", handlers.RegisterRoutes)
	return router
}

func TestHandleHealth(t *testing.T) {
	router := newSystemRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope(t, rec.Body)
	assert.Equal(t, "ok", data["status"])

	databases := data["databases"].(map[string]interface{})
	assert.Equal(t, "ok", databases["portfolio"])
	assert.Equal(t, "ok", databases["cache"])
}

func TestHandleSystemStatus(t *testing.T) {
	router := newSystemRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope(t, rec.Body)
	assert.Contains(t, data, "uptime_seconds")
	assert.Contains(t, data, "goroutines")
	assert.Contains(t, data, "database_mb")
}

func TestBackupEndpointsWithoutConfiguration(t *testing.T) {
	router := newSystemRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/backups", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/system/backup", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
