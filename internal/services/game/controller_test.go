package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-go/internal/dependencies/records"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage/memory"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeConn records every event sent to it
type fakeConn struct {
	id model.ConnectionID

	mu     sync.Mutex
	events []model.Event
	err    error
}

func newFakeConn(id model.ConnectionID) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() model.ConnectionID { return c.id }

func (c *fakeConn) Send(event model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) received(t model.EventType) []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []model.Event
	for _, e := range c.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// fakeTable stands in for one process's connection hub
type fakeTable struct {
	mu    sync.RWMutex
	conns map[model.ConnectionID]Conn
}

func newFakeTable(conns ...*fakeConn) *fakeTable {
	t := &fakeTable{conns: make(map[model.ConnectionID]Conn)}
	for _, c := range conns {
		t.add(c)
	}
	return t
}

func (t *fakeTable) add(c *fakeConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[c.ID()] = c
}

func (t *fakeTable) Lookup(id model.ConnectionID) (Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[id]
	return c, ok
}

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	broker     *memory.Broker
	records    *mocks.MockRecords
	random     *mocks.MockRandom
	c1, c2     *fakeConn
	table      *fakeTable
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.broker = memory.NewBroker()
	s.records = mocks.NewMockRecords()
	s.random = mocks.NewMockRandom()
	s.c1 = newFakeConn("conn-1")
	s.c2 = newFakeConn("conn-2")
	s.table = newFakeTable(s.c1, s.c2)
	s.controller = NewController(s.storage, s.broker, s.records, s.table, s.random, zap.NewNop())
	s.ctx = context.Background()
}

func (s *ControllerSuite) TearDownTest() {
	s.NoError(s.controller.Close())
}

func (s *ControllerSuite) join(conn *fakeConn, clientID model.ClientID) *Report {
	report, err := s.controller.JoinGame(s.ctx, conn, "g1", clientID)
	s.Require().NoError(err)
	return report
}

func (s *ControllerSuite) startGame() {
	s.join(s.c1, "p1")
	s.join(s.c2, "p2")
}

func (s *ControllerSuite) mark(clientID model.ClientID, index int) {
	_, err := s.controller.MarkCell(s.ctx, "g1", clientID, index)
	s.Require().NoError(err)
}

func (s *ControllerSuite) board() *model.Board {
	board, err := s.storage.GetBoard(s.ctx, "g1")
	s.Require().NoError(err)
	return board
}

func (s *ControllerSuite) eventually(conn *fakeConn, t model.EventType, count int) {
	s.Eventually(func() bool { return len(conn.received(t)) == count }, waitFor, tick,
		"%s waiting for %d %s", conn.id, count, t)
}

func (s *ControllerSuite) never(conn *fakeConn, t model.EventType, count int) {
	s.Never(func() bool { return len(conn.received(t)) > count }, 50*time.Millisecond, tick,
		"%s got more than %d %s", conn.id, count, t)
}

// Connect tests

func (s *ControllerSuite) TestConnectBindsClient() {
	_, err := s.controller.Connect(s.ctx, s.c1, "p1")
	s.Require().NoError(err)

	conn, err := s.controller.Registry().Resolve(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(model.ConnectionID("conn-1"), conn.ID())
}

func (s *ControllerSuite) TestResolveUnknownClient() {
	_, err := s.controller.Registry().Resolve(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrRouteUnresolved)
}

func (s *ControllerSuite) TestResolveConnectionHostedElsewhere() {
	_ = s.storage.BindConnection(s.ctx, "p9", "conn-on-another-process")

	_, err := s.controller.Registry().Resolve(s.ctx, "p9")
	s.ErrorIs(err, model.ErrRouteUnresolved)
}

// SetGame tests

func (s *ControllerSuite) TestSetGameCreatesPendingBoard() {
	report, err := s.controller.SetGame(s.ctx, s.c1, "g1")
	s.Require().NoError(err)
	s.True(report.OK())

	board := s.board()
	s.Equal(model.StatusPending, board.Status)
	s.Equal(model.Grid{}, board.Grid)
	s.Empty(s.c1.received(model.EventGameLive))
}

func (s *ControllerSuite) TestSetGameOnPendingGameSendsNothing() {
	_, _ = s.controller.SetGame(s.ctx, s.c1, "g1")
	_, err := s.controller.SetGame(s.ctx, s.c1, "g1")
	s.Require().NoError(err)
	s.Empty(s.c1.received(model.EventGameLive))
}

func (s *ControllerSuite) TestSetGameOnLiveGameSendsGrid() {
	s.startGame()
	s.mark("p1", 4)

	viewer := newFakeConn("conn-3")
	_, err := s.controller.SetGame(s.ctx, viewer, "g1")
	s.Require().NoError(err)

	live := viewer.received(model.EventGameLive)
	s.Require().Len(live, 1)
	s.Equal(model.GameID("g1"), live[0].GameID)
	s.Require().NotNil(live[0].Grid)
	s.Equal(model.ClientID("p1"), live[0].Grid[4])
}

// JoinGame tests

func (s *ControllerSuite) TestJoinCreatesBoardLazily() {
	s.join(s.c1, "p1")

	board := s.board()
	s.Equal(model.StatusPending, board.Status)

	participants, _ := s.storage.Participants(s.ctx, "g1")
	s.Equal([]model.ClientID{"p1"}, participants)
	s.eventually(s.c1, model.EventPlayerJoined, 1)
}

func (s *ControllerSuite) TestGameStartsOnlyWithSecondParticipant() {
	s.join(s.c1, "p1")
	s.join(s.c1, "p1")
	s.Equal(model.StatusPending, s.board().Status)
	s.Empty(s.records.PlayerUpdateCalls())

	s.random.QueueIntn(1, 200, 10, 5, 100, 40, 20)
	s.join(s.c2, "p2")

	s.Equal(model.StatusLive, s.board().Status)
	s.Equal([]mocks.PlayerUpdateCall{
		{ClientID: "p1", Update: playerUpdate(model.SymbolO, "hsl(200, 70%, 65%)")},
		{ClientID: "p2", Update: playerUpdate(model.SymbolX, "hsl(100, 100%, 80%)")},
	}, sortedPlayerCalls(s.records.PlayerUpdateCalls()))
	s.Equal([]mocks.GameUpdateCall{
		{GameID: "g1", Update: gameUpdate(model.StatusLive, "")},
	}, s.records.GameUpdateCalls())

	s.eventually(s.c1, model.EventGameStart, 1)
	s.eventually(s.c2, model.EventGameStart, 1)

	// Rejoining never restarts the game
	s.join(s.c2, "p2")
	s.join(s.c1, "p1")
	s.Len(s.records.PlayerUpdateCalls(), 2)
	s.Len(s.records.GameUpdateCalls(), 1)
	s.never(s.c1, model.EventGameStart, 1)
}

func (s *ControllerSuite) TestThirdClientIsRejected() {
	s.startGame()

	c3 := newFakeConn("conn-3")
	s.table.add(c3)
	_, err := s.controller.JoinGame(s.ctx, c3, "g1", "p3")
	s.ErrorIs(err, model.ErrGameFull)

	participants, _ := s.storage.Participants(s.ctx, "g1")
	s.Equal([]model.ClientID{"p1", "p2"}, participants)
	s.never(c3, model.EventPlayerJoined, 0)
}

func (s *ControllerSuite) TestRecordFailuresDoNotStopTheGame() {
	s.records.SetErr(errors.New("record service down"))

	s.join(s.c1, "p1")
	report := s.join(s.c2, "p2")

	s.False(report.OK())
	s.Len(report.Errors(), 2)
	s.Equal(model.StatusLive, s.board().Status)
	s.eventually(s.c1, model.EventGameStart, 1)
}

// MarkCell tests

func (s *ControllerSuite) TestWinScenario() {
	_, err := s.controller.SetGame(s.ctx, s.c1, "g1")
	s.Require().NoError(err)
	s.startGame()

	s.mark("p1", 0)
	s.mark("p1", 4)
	s.mark("p1", 8)

	board := s.board()
	s.Equal(model.StatusOver, board.Status)
	s.Equal(model.ClientID("p1"), board.Winner)

	s.eventually(s.c2, model.EventGridMarked, 3)
	for i, e := range s.c2.received(model.EventGridMarked) {
		s.Equal(model.ClientID("p1"), e.ClientID)
		s.Equal([]int{0, 4, 8}[i], *e.Index)
	}
	s.never(s.c1, model.EventGridMarked, 0)

	for _, conn := range []*fakeConn{s.c1, s.c2} {
		s.eventually(conn, model.EventGameOver, 1)
		over := conn.received(model.EventGameOver)[0]
		s.Equal(model.ClientID("p1"), over.Winner)
		s.False(over.Draw)
	}

	calls := s.records.GameUpdateCalls()
	s.Require().Len(calls, 2)
	s.Equal(gameUpdate(model.StatusOver, "p1"), calls[1].Update)
}

func (s *ControllerSuite) TestMarkAfterWinIsRejected() {
	s.startGame()
	s.mark("p1", 0)
	s.mark("p1", 1)
	s.mark("p1", 2)

	_, err := s.controller.MarkCell(s.ctx, "g1", "p2", 5)
	s.ErrorIs(err, model.ErrGameOver)

	s.eventually(s.c2, model.EventGameOver, 1)
	s.never(s.c2, model.EventGameOver, 1)
	s.Equal(model.ClientID(""), s.board().Grid[5])
}

func (s *ControllerSuite) TestDraw() {
	s.startGame()

	moves := []struct {
		client model.ClientID
		index  int
	}{
		{"p1", 0}, {"p2", 1}, {"p1", 2}, {"p2", 4}, {"p1", 3},
		{"p2", 5}, {"p1", 7}, {"p2", 6}, {"p1", 8},
	}
	for _, m := range moves {
		s.mark(m.client, m.index)
	}

	board := s.board()
	s.Equal(model.StatusDraw, board.Status)
	s.Equal(model.ClientID(""), board.Winner)

	for _, conn := range []*fakeConn{s.c1, s.c2} {
		s.eventually(conn, model.EventGameOver, 1)
		over := conn.received(model.EventGameOver)[0]
		s.True(over.Draw)
		s.Empty(over.Winner)
	}

	calls := s.records.GameUpdateCalls()
	s.Require().Len(calls, 2)
	s.Equal(gameUpdate(model.StatusOver, ""), calls[1].Update)
}

func (s *ControllerSuite) TestMarkValidation() {
	_, err := s.controller.MarkCell(s.ctx, "g1", "p1", 9)
	s.ErrorIs(err, model.ErrInvalidIndex)

	_, err = s.controller.MarkCell(s.ctx, "g1", "p1", -1)
	s.ErrorIs(err, model.ErrInvalidIndex)

	_, err = s.controller.MarkCell(s.ctx, "g1", "p1", 0)
	s.ErrorIs(err, model.ErrNotParticipant)

	s.join(s.c1, "p1")
	_, err = s.controller.MarkCell(s.ctx, "g1", "p1", 0)
	s.ErrorIs(err, model.ErrGameNotLive)

	s.join(s.c2, "p2")
	_, err = s.controller.MarkCell(s.ctx, "g1", "p3", 0)
	s.ErrorIs(err, model.ErrNotParticipant)

	s.mark("p1", 0)
	_, err = s.controller.MarkCell(s.ctx, "g1", "p2", 0)
	s.ErrorIs(err, model.ErrCellOccupied)
	s.Equal(model.ClientID("p1"), s.board().Grid[0])
}

func (s *ControllerSuite) TestRemarkingOwnCellIsNoOp() {
	s.startGame()
	s.mark("p2", 3)
	s.mark("p2", 3)

	s.Equal(model.ClientID("p2"), s.board().Grid[3])
	s.eventually(s.c1, model.EventGridMarked, 1)
	s.never(s.c1, model.EventGridMarked, 1)
}

// Disconnect tests

func (s *ControllerSuite) TestDisconnectReleasesChannelWhenLastConnectionLeaves() {
	s.startGame()
	s.Equal(1, s.broker.SubscriberCount("g1"))

	_, err := s.controller.Disconnect(s.ctx, s.c1.ID())
	s.Require().NoError(err)
	s.Equal(1, s.broker.SubscriberCount("g1"))

	_, err = s.controller.Disconnect(s.ctx, s.c2.ID())
	s.Require().NoError(err)
	s.Equal(0, s.broker.SubscriberCount("g1"))
	s.Empty(s.controller.Relay().Following())

	// Bindings are left for a newer connection to replace
	connID, err := s.storage.ConnectionID(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(s.c1.ID(), connID)
}

func (s *ControllerSuite) TestSendFailureDoesNotBlockOtherParticipant() {
	s.startGame()
	s.c1.mu.Lock()
	s.c1.err = errors.New("socket closed")
	s.c1.mu.Unlock()

	s.mark("p1", 0)
	s.mark("p1", 1)
	s.mark("p1", 2)

	s.eventually(s.c2, model.EventGameOver, 1)
}

// Cross-process tests

type CrossProcessSuite struct {
	suite.Suite
	storage      *memory.Storage
	broker       *memory.Broker
	records      *mocks.MockRecords
	processA     *Controller
	processB     *Controller
	connA, connB *fakeConn
	ctx          context.Context
}

func TestCrossProcessSuite(t *testing.T) {
	suite.Run(t, new(CrossProcessSuite))
}

func (s *CrossProcessSuite) SetupTest() {
	s.storage = memory.New()
	s.broker = memory.NewBroker()
	s.records = mocks.NewMockRecords()
	s.connA = newFakeConn("conn-a")
	s.connB = newFakeConn("conn-b")
	s.processA = NewController(s.storage, s.broker, s.records, newFakeTable(s.connA), mocks.NewMockRandom(), zap.NewNop())
	s.processB = NewController(s.storage, s.broker, s.records, newFakeTable(s.connB), mocks.NewMockRandom(), zap.NewNop())
	s.ctx = context.Background()
}

func (s *CrossProcessSuite) TearDownTest() {
	s.NoError(s.processA.Close())
	s.NoError(s.processB.Close())
}

func (s *CrossProcessSuite) TestEventsReachParticipantOnOtherProcess() {
	_, err := s.processA.JoinGame(s.ctx, s.connA, "g1", "p1")
	s.Require().NoError(err)
	_, err = s.processB.JoinGame(s.ctx, s.connB, "g1", "p2")
	s.Require().NoError(err)

	s.Eventually(func() bool { return len(s.connA.received(model.EventPlayerJoined)) == 2 }, waitFor, tick)
	joined := s.connA.received(model.EventPlayerJoined)
	s.Equal(model.ClientID("p2"), joined[1].ClientID)

	for _, conn := range []*fakeConn{s.connA, s.connB} {
		conn := conn
		s.Eventually(func() bool { return len(conn.received(model.EventGameStart)) == 1 }, waitFor, tick)
	}

	_, err = s.processA.MarkCell(s.ctx, "g1", "p1", 4)
	s.Require().NoError(err)
	_, err = s.processB.MarkCell(s.ctx, "g1", "p2", 0)
	s.Require().NoError(err)

	s.Eventually(func() bool { return len(s.connB.received(model.EventGridMarked)) == 1 }, waitFor, tick)
	s.Eventually(func() bool { return len(s.connA.received(model.EventGridMarked)) == 1 }, waitFor, tick)
	s.Equal(4, *s.connB.received(model.EventGridMarked)[0].Index)
	s.Equal(0, *s.connA.received(model.EventGridMarked)[0].Index)

	// Each process delivers only to its own connections, so nothing doubles up
	s.Never(func() bool {
		return len(s.connA.received(model.EventGameStart)) > 1 || len(s.connB.received(model.EventGameStart)) > 1
	}, 50*time.Millisecond, tick)
}

func (s *CrossProcessSuite) TestConcurrentJoinsStartOnce() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.processA.JoinGame(s.ctx, s.connA, "g1", "p1")
	}()
	go func() {
		defer wg.Done()
		_, _ = s.processB.JoinGame(s.ctx, s.connB, "g1", "p2")
	}()
	wg.Wait()

	board, err := s.storage.GetBoard(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(model.StatusLive, board.Status)
	s.Len(s.records.PlayerUpdateCalls(), 2)
	s.Len(s.records.GameUpdateCalls(), 1)
}

func playerUpdate(symbol model.Symbol, color model.Color) records.PlayerUpdate {
	return records.PlayerUpdate{Symbol: symbol, Color: color}
}

func gameUpdate(status model.Status, winner model.ClientID) records.GameUpdate {
	return records.GameUpdate{Status: status, Winner: winner}
}

// sortedPlayerCalls orders calls by client; players are updated concurrently
func sortedPlayerCalls(calls []mocks.PlayerUpdateCall) []mocks.PlayerUpdateCall {
	sort.Slice(calls, func(i, j int) bool { return calls[i].ClientID < calls[j].ClientID })
	return calls
}
