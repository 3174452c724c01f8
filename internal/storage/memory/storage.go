package memory

import (
	"context"
	"sync"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	connections  map[model.ClientID]model.ConnectionID
	participants map[model.GameID][]model.ClientID
	boards       map[model.GameID]model.Board
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		connections:  make(map[model.ClientID]model.ConnectionID),
		participants: make(map[model.GameID][]model.ClientID),
		boards:       make(map[model.GameID]model.Board),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Ping always succeeds
func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

// Connection operations

func (s *Storage) BindConnection(ctx context.Context, clientID model.ClientID, connID model.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[clientID] = connID
	return nil
}

func (s *Storage) UnbindConnection(ctx context.Context, clientID model.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, clientID)
	return nil
}

func (s *Storage) ConnectionID(ctx context.Context, clientID model.ClientID) (model.ConnectionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	connID, ok := s.connections[clientID]
	if !ok {
		return "", model.ErrConnectionNotFound
	}
	return connID, nil
}

// Participant operations

func (s *Storage) AddParticipant(ctx context.Context, gameID model.GameID, clientID model.ClientID, limit int) ([]model.ClientID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.participants[gameID]
	if limit > 0 {
		for _, id := range current {
			if id == clientID {
				return copyClients(current), false, nil
			}
		}
		if len(current) >= limit {
			return nil, false, model.ErrGameFull
		}
	}

	s.participants[gameID] = append(current, clientID)
	return copyClients(s.participants[gameID]), true, nil
}

func (s *Storage) Participants(ctx context.Context, gameID model.GameID) ([]model.ClientID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyClients(s.participants[gameID]), nil
}

func (s *Storage) RemoveParticipants(ctx context.Context, gameID model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, gameID)
	return nil
}

// Board operations. Boards are stored by value so callers never share state
// with the store.

func (s *Storage) InitBoard(ctx context.Context, gameID model.GameID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[gameID]; ok {
		return false, nil
	}
	s.boards[gameID] = *model.NewBoard(gameID)
	return true, nil
}

func (s *Storage) GetBoard(ctx context.Context, gameID model.GameID) (*model.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[gameID]
	if !ok {
		return nil, model.ErrBoardNotFound
	}
	board = board.Clone()
	return &board, nil
}

func (s *Storage) SaveBoard(ctx context.Context, board *model.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[board.GameID] = board.Clone()
	return nil
}

func (s *Storage) UpdateBoard(ctx context.Context, gameID model.GameID, fn func(*model.Board) error) (*model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[gameID]
	if !ok {
		return nil, model.ErrBoardNotFound
	}
	board = board.Clone()
	if err := fn(&board); err != nil {
		return nil, err
	}
	s.boards[gameID] = board.Clone()
	return &board, nil
}

func (s *Storage) DeleteBoard(ctx context.Context, gameID model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boards, gameID)
	return nil
}

func copyClients(ids []model.ClientID) []model.ClientID {
	result := make([]model.ClientID, len(ids))
	copy(result, ids)
	return result
}
