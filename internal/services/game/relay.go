package game

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Relay delivers game channel events to the participants hosted by this
// process. It holds one subscription per game for as long as at least one
// local connection follows that game.
type Relay struct {
	broker       storage.Broker
	participants storage.ParticipantStore
	registry     *ConnectionRegistry
	logger       *zap.Logger

	mu      sync.Mutex
	games   map[model.GameID]*followedGame
	follows map[model.ConnectionID]map[model.GameID]struct{}
}

type followedGame struct {
	channel storage.Channel
	conns   map[model.ConnectionID]struct{}
}

// NewRelay creates a relay
func NewRelay(broker storage.Broker, participants storage.ParticipantStore, registry *ConnectionRegistry, logger *zap.Logger) *Relay {
	return &Relay{
		broker:       broker,
		participants: participants,
		registry:     registry,
		logger:       logger.With(zap.String("component", "relay")),
		games:        make(map[model.GameID]*followedGame),
		follows:      make(map[model.ConnectionID]map[model.GameID]struct{}),
	}
}

// Follow subscribes this process to the game's channel on behalf of connID.
// Following a game twice is a no-op. The subscription is made without holding
// the relay lock; if two callers subscribe to the same game at once, the
// first to register keeps its channel and the other closes its own.
func (r *Relay) Follow(ctx context.Context, gameID model.GameID, connID model.ConnectionID) error {
	r.mu.Lock()
	if game, ok := r.games[gameID]; ok {
		r.track(game, gameID, connID)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	channel := r.broker.Channel(gameID)
	err := channel.Subscribe(ctx, func(event model.Event) {
		if r.owns(gameID, channel) {
			r.deliver(gameID, event)
		}
	})
	if err != nil {
		_ = channel.Close()
		return err
	}

	r.mu.Lock()
	game, ok := r.games[gameID]
	if !ok {
		game = &followedGame{channel: channel, conns: make(map[model.ConnectionID]struct{})}
		r.games[gameID] = game
		r.logger.Debug("following game", zap.String("game_id", string(gameID)))
	}
	r.track(game, gameID, connID)
	r.mu.Unlock()

	if ok {
		return channel.Close()
	}
	return nil
}

// track records connID as a follower of the game. Callers hold r.mu.
func (r *Relay) track(game *followedGame, gameID model.GameID, connID model.ConnectionID) {
	game.conns[connID] = struct{}{}
	if r.follows[connID] == nil {
		r.follows[connID] = make(map[model.GameID]struct{})
	}
	r.follows[connID][gameID] = struct{}{}
}

// owns reports whether channel is the game's registered subscription
func (r *Relay) owns(gameID model.GameID, channel storage.Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[gameID]
	return ok && game.channel == channel
}

// Drop stops following every game on behalf of connID and releases channels
// no local connection follows anymore
func (r *Relay) Drop(connID model.ConnectionID) error {
	var released []storage.Channel

	r.mu.Lock()
	for gameID := range r.follows[connID] {
		game := r.games[gameID]
		delete(game.conns, connID)
		if len(game.conns) == 0 {
			released = append(released, game.channel)
			delete(r.games, gameID)
			r.logger.Debug("released game", zap.String("game_id", string(gameID)))
		}
	}
	delete(r.follows, connID)
	r.mu.Unlock()

	var err error
	for _, channel := range released {
		err = multierr.Append(err, channel.Close())
	}
	return err
}

// Following returns the games this process is subscribed to
func (r *Relay) Following() []model.GameID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]model.GameID, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	return ids
}

// Close releases every subscription
func (r *Relay) Close() error {
	r.mu.Lock()
	games := r.games
	r.games = make(map[model.GameID]*followedGame)
	r.follows = make(map[model.ConnectionID]map[model.GameID]struct{})
	r.mu.Unlock()

	var err error
	for _, game := range games {
		err = multierr.Append(err, game.channel.Close())
	}
	return err
}

func (r *Relay) deliver(gameID model.GameID, event model.Event) {
	ctx := context.Background()
	logger := r.logger.With(
		zap.String("game_id", string(gameID)),
		zap.String("event", string(event.Type)),
	)

	participants, err := r.participants.Participants(ctx, gameID)
	if err != nil {
		logger.Error("failed to read participants", zap.Error(err))
		return
	}

	for _, clientID := range participants {
		// A mark is news only to the opponent
		if event.Type == model.EventGridMarked && clientID == event.ClientID {
			continue
		}

		conn, err := r.registry.Resolve(ctx, clientID)
		if err != nil {
			if !errors.Is(err, model.ErrRouteUnresolved) {
				logger.Warn("failed to resolve participant",
					zap.String("client_id", string(clientID)),
					zap.Error(err),
				)
			}
			continue
		}

		if err := conn.Send(event); err != nil {
			logger.Warn("failed to deliver event",
				zap.String("client_id", string(clientID)),
				zap.String("conn_id", string(conn.ID())),
				zap.Error(err),
			)
		}
	}
}
