package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/session"
)

type fakeHubStats map[string]interface{}

func (f fakeHubStats) Stats() map[string]interface{} { return f }

type fakeRuntimeStats struct{}

func (fakeRuntimeStats) Snapshot(context.Context) map[string]interface{} {
	return map[string]interface{}{"goroutines": 7}
}

func TestMetricsHandler_GetStats(t *testing.T) {
	store := session.NewMemoryStore(0)
	for i := 0; i < 3; i++ {
		_, err := store.Create()
		require.NoError(t, err)
	}
	handler := NewMetricsHandler(fakeHubStats{"total_clients": 1}, store, fakeRuntimeStats{})

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["active_sessions"])
	assert.Equal(t, map[string]interface{}{"total_clients": float64(1)}, body["websocket"])
	assert.Equal(t, map[string]interface{}{"goroutines": float64(7)}, body["runtime"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestMetricsHandler_WithoutRuntime(t *testing.T) {
	handler := NewMetricsHandler(fakeHubStats{}, session.NewMemoryStore(0), nil)

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "runtime")
	assert.Equal(t, float64(0), body["active_sessions"])
}
