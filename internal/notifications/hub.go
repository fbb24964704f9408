package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"socialapp/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per subject
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
)

// Hub is a websocket hub that maps subject id -> set of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
}

// NewHub creates a new Hub instance for managing notifications.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register a connection for a given subject. Returns the Client or error if limits exceeded.
func (h *Hub) Register(subjectID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[subjectID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[subjectID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, subjectID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes a client. It is safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.SubjectID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.WebSocketConnections.Dec()
		client.closeSend()
	}
	if len(m) == 0 {
		delete(h.conns, client.SubjectID)
	}
}

// Broadcast sends message to all connections for subjectID.
func (h *Hub) Broadcast(subjectID string, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[subjectID]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// ConnectionCount returns the number of open connections for subjectID.
func (h *Hub) ConnectionCount(subjectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[subjectID])
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis
// pattern and forwards messages to the matching subject's connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		subjectID, ok := subjectFromChannel(channel)
		if !ok {
			observability.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(subjectID, payload)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for subjectID, clients := range h.conns {
		for client := range clients {
			client.closeSend()
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				observability.Logger.Debug("failed to write close message",
					slog.String("subject", subjectID), slog.String("error", err.Error()))
			}
			_ = client.Conn.Close()
		}
		observability.WebSocketConnections.Sub(float64(len(clients)))
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
