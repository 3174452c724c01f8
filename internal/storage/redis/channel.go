package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

var errAlreadySubscribed = errors.New("channel already subscribed")

// Broker creates Redis pub/sub channels for games
type Broker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewBroker creates a broker on an existing client
func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client, logger: zap.NewNop()}
}

// WithLogger sets the logger used for undeliverable payloads
func (b *Broker) WithLogger(logger *zap.Logger) *Broker {
	b.logger = logger.With(zap.String("component", "game-channel"))
	return b
}

// Channel returns the channel for a game
func (b *Broker) Channel(gameID model.GameID) storage.Channel {
	return &Channel{
		client: b.client,
		topic:  topic(gameID),
		logger: b.logger.With(zap.String("game_id", string(gameID))),
	}
}

var _ storage.Broker = (*Broker)(nil)

// Channel is the pub/sub topic of a single game
type Channel struct {
	client *redis.Client
	topic  string
	logger *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
	closed bool
}

var _ storage.Channel = (*Channel)(nil)

func (c *Channel) Publish(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, c.topic, data).Err()
}

func (c *Channel) Subscribe(ctx context.Context, onMessage func(model.Event)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return redis.ErrClosed
	}
	if c.pubsub != nil {
		return errAlreadySubscribed
	}

	pubsub := c.client.Subscribe(ctx, c.topic)
	// Wait for the subscription to be confirmed so nothing published after
	// this returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	c.pubsub = pubsub
	c.done = make(chan struct{})
	go c.receive(pubsub.Channel(), c.done, onMessage)

	c.logger.Debug("subscribed to game channel")
	return nil
}

func (c *Channel) receive(messages <-chan *redis.Message, done chan struct{}, onMessage func(model.Event)) {
	defer close(done)
	for msg := range messages {
		var event model.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			c.logger.Warn("dropping malformed game channel payload", zap.Error(err))
			continue
		}
		onMessage(event)
	}
}

func (c *Channel) Unsubscribe() error {
	c.mu.Lock()
	pubsub, done := c.pubsub, c.done
	c.pubsub, c.done = nil, nil
	c.mu.Unlock()

	if pubsub == nil {
		return nil
	}

	err := pubsub.Close()
	<-done
	c.logger.Debug("unsubscribed from game channel")
	return err
}

// Close releases the subscription. The shared client stays open.
func (c *Channel) Close() error {
	err := c.Unsubscribe()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	return err
}
