package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
	"github.com/mcoot/tictactoe-go/internal/api/response"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/services/game"
)

// GameReader reads game snapshots
type GameReader interface {
	Snapshot(ctx context.Context, gameID model.GameID) (*game.Snapshot, error)
}

// GameHandler handles game-related endpoints
type GameHandler struct {
	games  GameReader
	logger *zap.Logger
}

// NewGameHandler creates a new game handler
func NewGameHandler(games GameReader, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		games:  games,
		logger: logger.With(zap.String("component", "game_handler")),
	}
}

// Get handles GET /api/v1/games/{game_id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])
	if gameID == "" {
		WriteError(w, apierr.NewInvalidRequestError("game id is required"))
		return
	}

	snapshot, err := h.games.Snapshot(r.Context(), gameID)
	if err != nil {
		if apierr.StatusCode(err) == http.StatusInternalServerError {
			h.logger.Error("failed to read game", zap.String("game_id", string(gameID)), zap.Error(err))
		}
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromSnapshot(gameID, snapshot))
}
