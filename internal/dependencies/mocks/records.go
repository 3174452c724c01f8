package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/tictactoe-go/internal/dependencies/records"
	"github.com/mcoot/tictactoe-go/internal/model"
)

// GameUpdateCall is one recorded UpdateGame call
type GameUpdateCall struct {
	GameID model.GameID
	Update records.GameUpdate
}

// PlayerUpdateCall is one recorded UpdatePlayer call
type PlayerUpdateCall struct {
	ClientID model.ClientID
	Update   records.PlayerUpdate
}

// MockRecords is an in-memory record store that records every call
type MockRecords struct {
	mu sync.Mutex

	Games         map[model.GameID]*records.GameRecord
	GameUpdates   []GameUpdateCall
	PlayerUpdates []PlayerUpdateCall

	// Err, if set, is returned from every call instead of succeeding
	Err error
}

var _ records.Store = (*MockRecords)(nil)

// NewMockRecords creates an empty MockRecords
func NewMockRecords() *MockRecords {
	return &MockRecords{Games: make(map[model.GameID]*records.GameRecord)}
}

func (m *MockRecords) GetGame(ctx context.Context, gameID model.GameID) (*records.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	record, ok := m.Games[gameID]
	if !ok {
		return &records.GameRecord{}, nil
	}
	copied := *record
	return &copied, nil
}

func (m *MockRecords) UpdateGame(ctx context.Context, gameID model.GameID, update records.GameUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GameUpdates = append(m.GameUpdates, GameUpdateCall{GameID: gameID, Update: update})
	if m.Err != nil {
		return m.Err
	}
	if err := update.Validate(); err != nil {
		return err
	}

	record, ok := m.Games[gameID]
	if !ok {
		record = &records.GameRecord{}
		m.Games[gameID] = record
	}
	if update.Status != "" {
		record.Status = update.Status
	}
	if update.Winner != "" {
		record.Winner = update.Winner
	}
	return nil
}

func (m *MockRecords) UpdatePlayer(ctx context.Context, clientID model.ClientID, update records.PlayerUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayerUpdates = append(m.PlayerUpdates, PlayerUpdateCall{ClientID: clientID, Update: update})
	if m.Err != nil {
		return m.Err
	}
	return update.Validate()
}

// SetErr makes every subsequent call fail with err
func (m *MockRecords) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// GameUpdateCalls returns a copy of the recorded UpdateGame calls
func (m *MockRecords) GameUpdateCalls() []GameUpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GameUpdateCall(nil), m.GameUpdates...)
}

// PlayerUpdateCalls returns a copy of the recorded UpdatePlayer calls
func (m *MockRecords) PlayerUpdateCalls() []PlayerUpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PlayerUpdateCall(nil), m.PlayerUpdates...)
}
