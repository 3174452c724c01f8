package game

import (
	"context"
	"errors"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Conn is a live connection hosted by this process
type Conn interface {
	ID() model.ConnectionID
	Send(event model.Event) error
}

// ConnectionTable finds connections hosted by this process
type ConnectionTable interface {
	Lookup(id model.ConnectionID) (Conn, bool)
}

// ConnectionRegistry maps clients to connections across processes. The
// shared store knows which connection a client last bound; only the process
// hosting that connection can resolve it to a handle.
type ConnectionRegistry struct {
	store storage.ConnectionStore
	table ConnectionTable
}

// NewConnectionRegistry creates a registry over the shared store and the
// local connection table
func NewConnectionRegistry(store storage.ConnectionStore, table ConnectionTable) *ConnectionRegistry {
	return &ConnectionRegistry{store: store, table: table}
}

// Bind records conn as the connection of clientID, replacing any earlier one
func (r *ConnectionRegistry) Bind(ctx context.Context, clientID model.ClientID, conn Conn) error {
	return r.store.BindConnection(ctx, clientID, conn.ID())
}

// Unbind forgets the connection of clientID
func (r *ConnectionRegistry) Unbind(ctx context.Context, clientID model.ClientID) error {
	return r.store.UnbindConnection(ctx, clientID)
}

// Resolve returns the live local connection of clientID. A client that is
// unknown, disconnected or hosted by another process yields
// model.ErrRouteUnresolved.
func (r *ConnectionRegistry) Resolve(ctx context.Context, clientID model.ClientID) (Conn, error) {
	connID, err := r.store.ConnectionID(ctx, clientID)
	if err != nil {
		if errors.Is(err, model.ErrConnectionNotFound) {
			return nil, model.ErrRouteUnresolved
		}
		return nil, err
	}

	conn, ok := r.table.Lookup(connID)
	if !ok {
		return nil, model.ErrRouteUnresolved
	}
	return conn, nil
}
