package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	apierrors "geodash/internal/errors"
	"geodash/internal/infrastructure"
	"geodash/internal/session"
	ws "geodash/internal/websocket"
)

// SessionLookup resolves the session a websocket client wants to watch
type SessionLookup interface {
	Session(ctx context.Context, sessionID string) (*session.Session, error)
}

// WebSocketOptions configures upgrades and client keepalive
type WebSocketOptions struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
	ReadBufferSize  int
	WriteBufferSize int
	PingPeriod      time.Duration
	PongWait        time.Duration
}

// WebSocketHandler upgrades session watchers onto the hub
type WebSocketHandler struct {
	hub          *ws.Hub
	sessions     SessionLookup
	opts         WebSocketOptions
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	upgrader     websocket.Upgrader
}

// NewWebSocketHandler creates a websocket handler
func NewWebSocketHandler(hub *ws.Hub, sessions SessionLookup, opts WebSocketOptions, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:          hub,
		sessions:     sessions,
		opts:         opts,
		logger:       logger.With(slog.String("handler", "websocket")),
		errorHandler: errorHandler,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(status, "WEBSOCKET_UPGRADE_FAILED",
				"WebSocket upgrade failed", map[string]interface{}{"reason": reason.Error()}))
		},
	}
	return h
}

// ServeHTTP handles GET /ws?session=<id>
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session", "session is required"))
		return
	}

	ctx := infrastructure.WithSessionID(infrastructure.EnsureTraceID(r.Context()), sessionID)
	traceID := infrastructure.GetTraceID(ctx)

	if _, err := h.sessions.Session(ctx, sessionID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already responded.
		h.logger.WarnContext(ctx, "WebSocket upgrade failed",
			slog.String("session_id", sessionID),
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("error", err.Error()))
		return
	}

	client := ws.ServeWS(h.hub, conn, sessionID, traceID, h.opts.PingPeriod, h.opts.PongWait, h.logger)

	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("session_id", sessionID),
		slog.String("remote_addr", r.RemoteAddr))
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.opts.AllowAllOrigins {
		return true
	}
	if origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed || allowed == "*" {
			return true
		}
	}

	h.logger.WarnContext(r.Context(), "WebSocket origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.opts.AllowedOrigins))
	return false
}
