package redis

import "github.com/mcoot/tictactoe-go/internal/model"

// Hash namespaces. Each holds one field per entity id.
const (
	clientConnectionsKey = "CLIENT_ID_SOCKET_MAP"
	gameClientsKey       = "GAME_CLIENTS_MAP"
	gameGridsKey         = "GAME_GRID_MAP"
)

// topic returns the pub/sub channel name for a game
func topic(gameID model.GameID) string {
	return string(gameID)
}
