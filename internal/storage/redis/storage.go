package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

const (
	retryInitialInterval = 2 * time.Millisecond
	retryMaxInterval     = 100 * time.Millisecond
)

// errFieldChanged means a compare-and-set lost to another writer
var errFieldChanged = errors.New("hash field changed")

// compareAndSet writes ARGV[4] to field ARGV[1] of KEYS[1] if the field is
// still absent (ARGV[2] == "1") or still holds ARGV[3]. Returns 1 on write.
var compareAndSet = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if ARGV[2] == '1' then
	if current then
		return 0
	end
elseif current ~= ARGV[3] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[4])
return 1
`)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Broker returns a game channel broker sharing this storage's client
func (s *Storage) Broker(logger *zap.Logger) *Broker {
	return NewBroker(s.client).WithLogger(logger)
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Connection operations

func (s *Storage) BindConnection(ctx context.Context, clientID model.ClientID, connID model.ConnectionID) error {
	return s.client.HSet(ctx, clientConnectionsKey, string(clientID), string(connID)).Err()
}

func (s *Storage) UnbindConnection(ctx context.Context, clientID model.ClientID) error {
	return s.client.HDel(ctx, clientConnectionsKey, string(clientID)).Err()
}

func (s *Storage) ConnectionID(ctx context.Context, clientID model.ClientID) (model.ConnectionID, error) {
	connID, err := s.client.HGet(ctx, clientConnectionsKey, string(clientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrConnectionNotFound
		}
		return "", err
	}
	return model.ConnectionID(connID), nil
}

// Participant operations

func (s *Storage) AddParticipant(ctx context.Context, gameID model.GameID, clientID model.ClientID, limit int) ([]model.ClientID, bool, error) {
	var (
		participants []model.ClientID
		added        bool
	)

	err := s.update(ctx, gameClientsKey, string(gameID), func(data []byte) ([]byte, error) {
		current, err := decodeParticipants(data)
		if err != nil {
			return nil, err
		}

		if limit > 0 {
			for _, id := range current {
				if id == clientID {
					participants, added = current, false
					return nil, nil
				}
			}
			if len(current) >= limit {
				return nil, model.ErrGameFull
			}
		}

		next := append(current, clientID)
		participants, added = next, true
		return json.Marshal(next)
	})
	if err != nil {
		return nil, false, err
	}
	return participants, added, nil
}

func (s *Storage) Participants(ctx context.Context, gameID model.GameID) ([]model.ClientID, error) {
	return readParticipants(ctx, s.client, gameID)
}

func (s *Storage) RemoveParticipants(ctx context.Context, gameID model.GameID) error {
	return s.client.HDel(ctx, gameClientsKey, string(gameID)).Err()
}

// Board operations

func (s *Storage) InitBoard(ctx context.Context, gameID model.GameID) (bool, error) {
	data, err := json.Marshal(model.NewBoard(gameID))
	if err != nil {
		return false, err
	}
	return s.client.HSetNX(ctx, gameGridsKey, string(gameID), data).Result()
}

func (s *Storage) GetBoard(ctx context.Context, gameID model.GameID) (*model.Board, error) {
	return readBoard(ctx, s.client, gameID)
}

func (s *Storage) SaveBoard(ctx context.Context, board *model.Board) error {
	data, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, gameGridsKey, string(board.GameID), data).Err()
}

func (s *Storage) UpdateBoard(ctx context.Context, gameID model.GameID, fn func(*model.Board) error) (*model.Board, error) {
	var updated *model.Board

	err := s.update(ctx, gameGridsKey, string(gameID), func(data []byte) ([]byte, error) {
		board, err := decodeBoard(gameID, data)
		if err != nil {
			return nil, err
		}
		if err := fn(board); err != nil {
			return nil, err
		}
		updated = board
		return json.Marshal(board)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Storage) DeleteBoard(ctx context.Context, gameID model.GameID) error {
	return s.client.HDel(ctx, gameGridsKey, string(gameID)).Err()
}

// update runs fn on the current value of one hash field and stores what it
// returns, unless another writer changed that field in between. A conflict
// retries fn with jittered backoff. Writers on other fields never conflict.
// fn gets nil for a missing field and returns nil to leave it as is.
func (s *Storage) update(ctx context.Context, key, field string, fn func(current []byte) ([]byte, error)) error {
	attempt := func() error {
		current, err := s.client.HGet(ctx, key, field).Bytes()
		missing := errors.Is(err, redis.Nil)
		if err != nil && !missing {
			return backoff.Permanent(err)
		}
		if missing {
			current = nil
		}

		next, err := fn(current)
		if err != nil {
			return backoff.Permanent(err)
		}
		if next == nil {
			return nil
		}

		absent := "0"
		if missing {
			absent = "1"
		}
		swapped, err := compareAndSet.Run(ctx, s.client, []string{key}, field, absent, current, next).Int()
		if err != nil {
			return backoff.Permanent(err)
		}
		if swapped == 0 {
			return errFieldChanged
		}
		return nil
	}

	err := backoff.Retry(attempt, s.retryPolicy(ctx))
	if errors.Is(err, errFieldChanged) {
		return model.ErrTxContention
	}
	return err
}

// retryPolicy allows MaxTxRetries attempts in total
func (s *Storage) retryPolicy(ctx context.Context) backoff.BackOff {
	attempts := s.cfg.MaxTxRetries
	if attempts <= 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

func readParticipants(ctx context.Context, c redis.Cmdable, gameID model.GameID) ([]model.ClientID, error) {
	data, err := c.HGet(ctx, gameClientsKey, string(gameID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return decodeParticipants(data)
}

func decodeParticipants(data []byte) ([]model.ClientID, error) {
	if len(data) == 0 {
		return []model.ClientID{}, nil
	}
	var participants []model.ClientID
	if err := json.Unmarshal(data, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func readBoard(ctx context.Context, c redis.Cmdable, gameID model.GameID) (*model.Board, error) {
	data, err := c.HGet(ctx, gameGridsKey, string(gameID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return decodeBoard(gameID, data)
}

func decodeBoard(gameID model.GameID, data []byte) (*model.Board, error) {
	if len(data) == 0 {
		return nil, model.ErrBoardNotFound
	}
	var board model.Board
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, err
	}
	board.GameID = gameID
	// Boards written by older servers carry only the grid
	if board.Status == "" {
		board.Status = model.StatusPending
	}
	return &board, nil
}
