package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// AllowAnyOrigin disables the Origin check
const AllowAnyOrigin = "*"

// Handler upgrades HTTP requests to game connections
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHandler creates a websocket handler. Handshakes whose Origin header is
// set and differs from allowedOrigin are refused.
func NewHandler(hub *Hub, dispatcher *Dispatcher, allowedOrigin string, logger *zap.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigin),
		},
		logger: logger.With(zap.String("component", "websocket")),
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == AllowAnyOrigin {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("websocket upgrade failed",
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err),
		)
		return
	}

	client := newClient(model.ConnectionID(uuid.NewString()), conn, h.hub.clock.Now(), h.logger)
	h.hub.Register(client)

	go client.writePump()
	if err := client.Send(model.NewGreetingEvent()); err != nil {
		client.logger.Warn("failed to greet connection", zap.Error(err))
	}

	// The request context is done once the handler returns, so the
	// connection gets its own
	go h.serve(context.Background(), client)
}

func (h *Handler) serve(ctx context.Context, client *Client) {
	defer func() {
		h.hub.Unregister(client.ID())
		h.dispatcher.Disconnect(ctx, client.ID())
		client.Close()
	}()

	client.readPump(ctx, func(ctx context.Context, data []byte) {
		h.dispatcher.Dispatch(ctx, client, data)
	})
}
