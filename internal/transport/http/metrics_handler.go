package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"geodash/internal/services"
)

// HubStats reports websocket delivery counters
type HubStats interface {
	Stats() map[string]interface{}
}

// RuntimeStats samples process level statistics
type RuntimeStats interface {
	Snapshot(ctx context.Context) map[string]interface{}
}

// MetricsHandler serves runtime counters for the dashboard
type MetricsHandler struct {
	hub      HubStats
	sessions services.SessionCounter
	runtime  RuntimeStats
}

// NewMetricsHandler creates a new metrics handler. runtime may be nil.
func NewMetricsHandler(hub HubStats, sessions services.SessionCounter, runtime RuntimeStats) *MetricsHandler {
	return &MetricsHandler{hub: hub, sessions: sessions, runtime: runtime}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.GetStats)
	return r
}

// GetStats handles GET /api/v1/stats
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": h.sessions.Len(),
		"websocket":       h.hub.Stats(),
	}
	if h.runtime != nil {
		stats["runtime"] = h.runtime.Snapshot(r.Context())
	}
	render.JSON(w, r, stats)
}
