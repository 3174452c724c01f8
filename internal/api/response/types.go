package response

import (
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/services/game"
)

// Health is the response for the health endpoint
type Health struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Connections int    `json:"connections"`
}

// Game is a read-only view of one game
type Game struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Grid         model.Grid `json:"grid"`
	Winner       *string    `json:"winner"`
	Participants []string   `json:"participants"`
}

// GameFromSnapshot converts a game.Snapshot
func GameFromSnapshot(gameID model.GameID, s *game.Snapshot) Game {
	participants := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		participants[i] = string(p)
	}

	var winner *string
	if s.Board.Winner != "" {
		w := string(s.Board.Winner)
		winner = &w
	}

	return Game{
		ID:           string(gameID),
		Status:       string(s.Board.Status),
		Grid:         s.Board.Grid,
		Winner:       winner,
		Participants: participants,
	}
}
