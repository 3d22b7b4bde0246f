package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/services"
	"geodash/internal/session"
)

type staticClients int

func (c staticClients) ClientCount() int { return int(c) }

func newHealthRouter(sessions services.SessionCounter, clients services.ClientCounter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHealthHandler(services.NewHealthService("v1.0.0-test", "", "", sessions, clients, logger), logger)

	r := chi.NewRouter()
	r.Mount("/api/health", handler.Routes())
	r.Get("/api/version", handler.Version)
	return r
}

func TestHealthHandler_Endpoints(t *testing.T) {
	store := session.NewMemoryStore(0)
	_, err := store.Create()
	require.NoError(t, err)
	router := newHealthRouter(store, staticClients(2))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedState  string
	}{
		{"health", "/api/health", http.StatusOK, "ok"},
		{"ready", "/api/health/ready", http.StatusOK, "ready"},
		{"live", "/api/health/live", http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var body services.HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedState, body.Status)
			assert.Equal(t, "v1.0.0-test", body.Version)
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	var ready struct {
		Services map[string]services.ServiceHealth `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, 1, ready.Services["sessions"].Active)
	assert.Equal(t, 2, ready.Services["websocket"].Active)
}

func TestHealthHandler_NotReady(t *testing.T) {
	router := newHealthRouter(nil, staticClients(0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_ready"`)
}

func TestHealthHandler_Version(t *testing.T) {
	router := newHealthRouter(session.NewMemoryStore(0), staticClients(0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "v1.0.0-test", body["version"])
	assert.NotEmpty(t, body["go_version"])
}
