package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

var (
	errChannelClosed     = errors.New("channel closed")
	errAlreadySubscribed = errors.New("channel already subscribed")
)

// Broker is an in-process pub/sub hub. Brokers are shared between every
// coordinator that should see the same games, which lets tests run several
// "processes" against one store.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[model.GameID]map[*subscription]struct{}
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[model.GameID]map[*subscription]struct{}),
	}
}

var _ storage.Broker = (*Broker)(nil)

// Channel returns the channel for a game
func (b *Broker) Channel(gameID model.GameID) storage.Channel {
	return &Channel{broker: b, gameID: gameID}
}

// SubscriberCount returns the number of active subscriptions for a game
func (b *Broker) SubscriberCount(gameID model.GameID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[gameID])
}

func (b *Broker) publish(gameID model.GameID, event model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers[gameID] {
		sub.push(event)
	}
}

func (b *Broker) add(gameID model.GameID, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[gameID]
	if !ok {
		subs = make(map[*subscription]struct{})
		b.subscribers[gameID] = subs
	}
	subs[sub] = struct{}{}
}

func (b *Broker) remove(gameID model.GameID, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers[gameID], sub)
	if len(b.subscribers[gameID]) == 0 {
		delete(b.subscribers, gameID)
	}
}

// Channel is one handle on a game topic
type Channel struct {
	broker *Broker
	gameID model.GameID

	mu     sync.Mutex
	sub    *subscription
	closed bool
}

var _ storage.Channel = (*Channel)(nil)

func (c *Channel) Publish(ctx context.Context, event model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.broker.publish(c.gameID, event)
	return nil
}

func (c *Channel) Subscribe(ctx context.Context, onMessage func(model.Event)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errChannelClosed
	}
	if c.sub != nil {
		return errAlreadySubscribed
	}

	c.sub = newSubscription(onMessage)
	c.broker.add(c.gameID, c.sub)
	return nil
}

func (c *Channel) Unsubscribe() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub == nil {
		return nil
	}
	c.broker.remove(c.gameID, sub)
	sub.stop()
	return nil
}

func (c *Channel) Close() error {
	err := c.Unsubscribe()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

// subscription queues events without bound and hands them to onMessage in
// order from its own goroutine, so publishers never block on slow receivers
type subscription struct {
	mu      sync.Mutex
	queue   []model.Event
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSubscription(onMessage func(model.Event)) *subscription {
	sub := &subscription{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go sub.run(onMessage)
	return sub
}

func (s *subscription) push(event model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.queue = append(s.queue, event)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run(onMessage func(model.Event)) {
	defer close(s.done)
	for range s.wake {
		for {
			s.mu.Lock()
			if s.stopped || len(s.queue) == 0 {
				stopped := s.stopped
				s.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			event := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			onMessage(event)
		}
	}
}

// stop discards queued events and waits for an in-flight delivery to finish
func (s *subscription) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.queue = nil
	close(s.wake)
	s.mu.Unlock()

	<-s.done
}
