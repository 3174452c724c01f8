package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/api/response"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports the number of live local connections
type ConnectionCounter interface {
	Len() int
}

// HealthHandler reports liveness of this process and its shared store
type HealthHandler struct {
	store       Pinger
	connections ConnectionCounter
	logger      *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, connections ConnectionCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:       store,
		connections: connections,
		logger:      logger.With(zap.String("component", "health")),
	}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("store unreachable", zap.Error(err))
		WriteError(w, apierr.NewUnavailableError("store unreachable"))
		return
	}

	response.JSON(w, http.StatusOK, response.Health{
		Status:      "ok",
		Storage:     "ok",
		Connections: h.connections.Len(),
	})
}
