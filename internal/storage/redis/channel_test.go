package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mcoot/tictactoe-go/internal/model"
)

type ChannelSuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *redis.Client
	broker *Broker
	logs   *observer.ObservedLogs
	ctx    context.Context
}

func TestChannelSuite(t *testing.T) {
	suite.Run(t, new(ChannelSuite))
}

func (s *ChannelSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mini.Addr()})

	core, logs := observer.New(zap.DebugLevel)
	s.logs = logs
	s.broker = NewBroker(s.client).WithLogger(zap.New(core))
	s.ctx = context.Background()
}

func (s *ChannelSuite) TearDownTest() {
	_ = s.client.Close()
}

type received struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *received) add(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *received) snapshot() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (s *ChannelSuite) TestPublishDeliversInOrder() {
	sub := s.broker.Channel("g1")
	defer sub.Close()

	got := &received{}
	s.Require().NoError(sub.Subscribe(s.ctx, got.add))

	pub := s.broker.Channel("g1")
	s.Require().NoError(pub.Publish(s.ctx, model.NewPlayerJoinedEvent("g1", "p1")))
	s.Require().NoError(pub.Publish(s.ctx, model.NewGameStartEvent("g1")))
	s.Require().NoError(pub.Publish(s.ctx, model.NewGridMarkedEvent("g1", "p1", 4)))

	s.Eventually(func() bool { return len(got.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)

	events := got.snapshot()
	s.Equal(model.EventPlayerJoined, events[0].Type)
	s.Equal(model.ClientID("p1"), events[0].ClientID)
	s.Equal(model.EventGameStart, events[1].Type)
	s.Equal(model.EventGridMarked, events[2].Type)
	s.Require().NotNil(events[2].Index)
	s.Equal(4, *events[2].Index)
}

func (s *ChannelSuite) TestChannelsAreScopedToGame() {
	other := s.broker.Channel("g2")
	defer other.Close()

	got := &received{}
	s.Require().NoError(other.Subscribe(s.ctx, got.add))

	s.Require().NoError(s.broker.Channel("g1").Publish(s.ctx, model.NewGameStartEvent("g1")))
	s.Require().NoError(s.broker.Channel("g2").Publish(s.ctx, model.NewGameStartEvent("g2")))

	s.Eventually(func() bool { return len(got.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Never(func() bool { return len(got.snapshot()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	s.Equal(model.GameID("g2"), got.snapshot()[0].GameID)
}

func (s *ChannelSuite) TestMalformedPayloadIsDropped() {
	sub := s.broker.Channel("g1")
	defer sub.Close()

	got := &received{}
	s.Require().NoError(sub.Subscribe(s.ctx, got.add))

	s.Require().NoError(s.client.Publish(s.ctx, "g1", "not json").Err())
	s.Require().NoError(sub.Publish(s.ctx, model.NewGameStartEvent("g1")))

	s.Eventually(func() bool { return len(got.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Equal(model.EventGameStart, got.snapshot()[0].Type)
	s.Equal(1, s.logs.FilterMessage("dropping malformed game channel payload").Len())
}

func (s *ChannelSuite) TestSubscribeTwiceFails() {
	sub := s.broker.Channel("g1")
	defer sub.Close()

	s.Require().NoError(sub.Subscribe(s.ctx, func(model.Event) {}))
	s.ErrorIs(sub.Subscribe(s.ctx, func(model.Event) {}), errAlreadySubscribed)
}

func (s *ChannelSuite) TestUnsubscribeStopsDelivery() {
	sub := s.broker.Channel("g1")
	defer sub.Close()

	got := &received{}
	s.Require().NoError(sub.Subscribe(s.ctx, got.add))
	s.Require().NoError(sub.Unsubscribe())

	s.Require().NoError(sub.Publish(s.ctx, model.NewGameStartEvent("g1")))
	s.Never(func() bool { return len(got.snapshot()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	// A channel can be resubscribed after unsubscribing
	s.Require().NoError(sub.Subscribe(s.ctx, got.add))
}

func (s *ChannelSuite) TestUnsubscribeAndCloseWithoutSubscribe() {
	sub := s.broker.Channel("g1")

	s.NoError(sub.Unsubscribe())
	s.NoError(sub.Close())
	s.NoError(sub.Close())
	s.ErrorIs(sub.Subscribe(s.ctx, func(model.Event) {}), redis.ErrClosed)
}
