package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/api/handler"
	"github.com/mcoot/tictactoe-go/internal/api/middleware"
	rootmiddleware "github.com/mcoot/tictactoe-go/internal/middleware"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *zap.Logger
	Store       handler.Pinger
	Connections handler.ConnectionCounter
	Games       handler.GameReader
	// WebSocket serves game connections at /ws
	WebSocket http.Handler
	// Metrics serves /metrics when set
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	healthHandler := handler.NewHealthHandler(cfg.Store, cfg.Connections, cfg.Logger)
	gameHandler := handler.NewGameHandler(cfg.Games, cfg.Logger)

	loggingMiddleware := rootmiddleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/games/{game_id}", gameHandler.Get).Methods(http.MethodGet)

	r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	return r
}
