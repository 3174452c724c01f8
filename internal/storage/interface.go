package storage

import (
	"context"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// ConnectionStore maps a client to the id of its live connection
type ConnectionStore interface {
	BindConnection(ctx context.Context, clientID model.ClientID, connID model.ConnectionID) error
	UnbindConnection(ctx context.Context, clientID model.ClientID) error
	ConnectionID(ctx context.Context, clientID model.ClientID) (model.ConnectionID, error)
}

// ParticipantStore maps a game to its joined clients in join order
type ParticipantStore interface {
	// AddParticipant appends clientID. With limit <= 0 the append is
	// unconditional. With limit > 0 the append is atomic, skips clients
	// already present (added=false) and fails with model.ErrGameFull when
	// the list already holds limit clients.
	AddParticipant(ctx context.Context, gameID model.GameID, clientID model.ClientID, limit int) (participants []model.ClientID, added bool, err error)
	Participants(ctx context.Context, gameID model.GameID) ([]model.ClientID, error)
	RemoveParticipants(ctx context.Context, gameID model.GameID) error
}

// BoardStore holds the grid and status of each game
type BoardStore interface {
	// InitBoard stores a fresh pending board unless one already exists
	InitBoard(ctx context.Context, gameID model.GameID) (created bool, err error)
	GetBoard(ctx context.Context, gameID model.GameID) (*model.Board, error)
	SaveBoard(ctx context.Context, board *model.Board) error
	// UpdateBoard applies fn to the current board and stores the result
	// atomically. An error from fn aborts the update and is returned as is.
	UpdateBoard(ctx context.Context, gameID model.GameID, fn func(*model.Board) error) (*model.Board, error)
	DeleteBoard(ctx context.Context, gameID model.GameID) error
}

// Storage is the full shared store
type Storage interface {
	ConnectionStore
	ParticipantStore
	BoardStore
	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
}

// Broker hands out pub/sub channels scoped to one game
type Broker interface {
	Channel(gameID model.GameID) Channel
}

// Channel is the pub/sub topic of one game. Every process subscribed to the
// topic receives each published event, the publisher included.
type Channel interface {
	Publish(ctx context.Context, event model.Event) error
	// Subscribe returns once the subscription is active. onMessage is called
	// for each event in receipt order from a single goroutine.
	Subscribe(ctx context.Context, onMessage func(model.Event)) error
	// Unsubscribe and Close are safe to call repeatedly or without Subscribe
	Unsubscribe() error
	Close() error
}
