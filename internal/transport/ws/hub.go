package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/dependencies/clock"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/services/game"
)

// Hub is the table of connections hosted by this process
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnectionID]*Client

	clock   clock.Clock
	metrics Metrics
	logger  *zap.Logger
}

// NewHub creates an empty hub
func NewHub(clk clock.Clock, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnectionID]*Client),
		clock:   clk,
		metrics: nopMetrics{},
		logger:  logger.With(zap.String("component", "hub")),
	}
}

// WithMetrics sets the connection counters
func (h *Hub) WithMetrics(m Metrics) *Hub {
	h.metrics = m
	return h
}

var _ game.ConnectionTable = (*Hub)(nil)

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	_, exists := h.clients[c.id]
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	if !exists {
		h.metrics.ConnectionOpened()
	}

	h.logger.Debug("connection registered",
		zap.String("conn_id", string(c.id)),
		zap.Int("total", total),
	)
}

// Unregister removes a client from the hub. It does not close the client.
func (h *Hub) Unregister(id model.ConnectionID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.ConnectionClosed()
	h.logger.Debug("connection unregistered",
		zap.String("conn_id", string(id)),
		zap.Duration("connected_for", clock.Since(h.clock, c.connectedAt)),
		zap.Int("total", total),
	)
}

// Lookup returns the live connection with the given id
func (h *Hub) Lookup(id model.ConnectionID) (game.Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Len returns the number of connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every connection. Their read loops then unregister them.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
