package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"geodash/internal/infrastructure"
)

// Event types sent to dashboard clients
const (
	TypeConnection   = "connection"
	TypeDatasetReady = "dataset:ready"
	TypeDatasetError = "dataset:error"
	TypeSessionEnded = "session:ended"
)

// broadcastBuffer bounds the events queued between publishers and the run loop.
const broadcastBuffer = 256

// Event is the envelope of every message sent to a client.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

type outbound struct {
	sessionID string
	payload   []byte
	traceID   string
}

// Hub maintains the set of active clients and delivers session events to the
// clients watching that session.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Events waiting for delivery
	broadcast chan outbound

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	// Control
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewHub creates a new Hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "websocket.hub"))

	return &Hub{
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
		metrics:    metrics,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start starts the hub's run loop. A stopped hub cannot be restarted.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped() {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop. Client send channels are only closed from
// here, so delivery never races a close.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			closed := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.recordClients(context.Background(), -int64(closed))
			h.logger.Info("Hub shutting down", slog.Int("disconnected_clients", closed))
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.totalConnections++
			h.mu.Unlock()

			ctx := client.context()
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("session_id", client.sessionID),
				slog.String("remote_addr", client.remoteAddr))
			h.recordClients(ctx, 1)

			h.sendConnected(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; !ok {
				h.mu.Unlock()
				continue
			}
			delete(h.clients, client)
			close(client.send)
			count := len(h.clients)
			h.mu.Unlock()

			ctx := client.context()
			h.logger.InfoContext(ctx, "Client unregistered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))
			h.recordClients(ctx, -1)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver sends msg to every client of its session. A client whose buffer
// is full is disconnected.
func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.sessionID == msg.sessionID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	ctx := context.Background()
	if msg.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, msg.traceID)
	}

	failCount := 0
	for _, client := range targets {
		select {
		case client.send <- msg.payload:
			h.mu.Lock()
			h.messagesSent++
			h.mu.Unlock()
		default:
			failCount++
			h.mu.Lock()
			_, registered := h.clients[client]
			if registered {
				close(client.send)
				delete(h.clients, client)
			}
			h.messagesDropped++
			h.mu.Unlock()
			if registered {
				h.recordClients(ctx, -1)
			}
			h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}

	h.logger.DebugContext(ctx, "Session event delivered",
		slog.String("session_id", msg.sessionID),
		slog.Int("client_count", len(targets)),
		slog.Int("fail_count", failCount),
		slog.Int("payload_size", len(msg.payload)))
}

func (h *Hub) sendConnected(client *Client) {
	payload, err := json.Marshal(Event{
		Type:      TypeConnection,
		SessionID: client.sessionID,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   client.traceID,
	})
	if err != nil {
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.Warn("Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

// Publish queues an event for the clients of sessionID. It never blocks; an
// event that cannot be queued is dropped and logged.
func (h *Hub) Publish(ctx context.Context, sessionID, eventType string, data interface{}) {
	traceID := infrastructure.GetTraceID(ctx)
	payload, err := json.Marshal(Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   traceID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling event",
			slog.String("error", err.Error()),
			slog.String("event_type", eventType))
		return
	}

	select {
	case h.broadcast <- outbound{sessionID: sessionID, payload: payload, traceID: traceID}:
	case <-h.quit:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.WarnContext(ctx, "Event queue full, dropping event",
			slog.String("event_type", eventType),
			slog.String("session_id", sessionID))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of clients watching sessionID
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.sessionID == sessionID {
			n++
		}
	}
	return n
}

// Stats returns current hub counters
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
	}
}

// Stop gracefully stops the hub and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) stopped() bool {
	select {
	case <-h.quit:
		return true
	default:
		return false
	}
}

func (h *Hub) recordClients(ctx context.Context, delta int64) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebSocketClients.Add(ctx, delta)
}
