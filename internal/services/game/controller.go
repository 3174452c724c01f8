package game

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/dependencies/records"
	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/storage"
)

// Controller coordinates game sessions: creation, joining, start, marks and
// outcome. Every process runs one; they share state only through the store
// and the game channels.
type Controller struct {
	storage  storage.Storage
	broker   storage.Broker
	records  records.Store
	registry *ConnectionRegistry
	relay    *Relay
	random   random.Random
	metrics  Metrics
	logger   *zap.Logger
}

// Metrics counts game lifecycle events
type Metrics interface {
	GameStarted()
	GameFinished(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) GameStarted() {}
func (nopMetrics) GameFinished(string) {}

// NewController creates a new Controller. table is this process's view of
// its own live connections.
func NewController(
	storage storage.Storage,
	broker storage.Broker,
	records records.Store,
	table ConnectionTable,
	random random.Random,
	logger *zap.Logger,
) *Controller {
	logger = logger.With(zap.String("component", "game"))
	registry := NewConnectionRegistry(storage, table)
	return &Controller{
		storage:  storage,
		broker:   broker,
		records:  records,
		registry: registry,
		relay:    NewRelay(broker, storage, registry, logger),
		random:   random,
		metrics:  nopMetrics{},
		logger:   logger,
	}
}

// WithMetrics sets the lifecycle counters
func (c *Controller) WithMetrics(m Metrics) *Controller {
	c.metrics = m
	return c
}

// Registry returns the connection registry the controller routes through
func (c *Controller) Registry() *ConnectionRegistry {
	return c.registry
}

// Relay returns the relay delivering channel events to local connections
func (c *Controller) Relay() *Relay {
	return c.relay
}

// Connect binds clientID to conn so events for the client reach it
func (c *Controller) Connect(ctx context.Context, conn Conn, clientID model.ClientID) (*Report, error) {
	if err := c.registry.Bind(ctx, clientID, conn); err != nil {
		return nil, err
	}
	c.logger.Debug("client connected",
		zap.String("client_id", string(clientID)),
		zap.String("conn_id", string(conn.ID())),
	)
	return &Report{}, nil
}

// SetGame creates the game's board if it does not exist. A viewer of a game
// already in play is sent the current grid.
func (c *Controller) SetGame(ctx context.Context, conn Conn, gameID model.GameID) (*Report, error) {
	report := &Report{}

	created, err := c.storage.InitBoard(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if created {
		c.logger.Info("game created", zap.String("game_id", string(gameID)))
		return report, nil
	}

	board, err := c.storage.GetBoard(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if board.Status == model.StatusLive {
		report.add("send game live", conn.Send(model.NewGameLiveEvent(gameID, board.Grid)))
	}
	return report, nil
}

// JoinGame adds clientID to the game and starts it once the second player is in
func (c *Controller) JoinGame(ctx context.Context, conn Conn, gameID model.GameID, clientID model.ClientID) (*Report, error) {
	report := &Report{}
	logger := c.logger.With(
		zap.String("game_id", string(gameID)),
		zap.String("client_id", string(clientID)),
	)

	if _, err := c.storage.InitBoard(ctx, gameID); err != nil {
		return nil, err
	}

	participants, added, err := c.storage.AddParticipant(ctx, gameID, clientID, model.MaxParticipants)
	if err != nil {
		if errors.Is(err, model.ErrGameFull) {
			logger.Info("join rejected, game full")
		}
		return nil, err
	}

	if err := c.registry.Bind(ctx, clientID, conn); err != nil {
		return nil, err
	}
	if err := c.relay.Follow(ctx, gameID, conn.ID()); err != nil {
		return nil, err
	}

	report.add("publish player joined", c.publish(ctx, model.NewPlayerJoinedEvent(gameID, clientID)))
	logger.Info("client joined game",
		zap.Bool("rejoin", !added),
		zap.Int("participants", len(participants)),
	)

	// A retried join finishes a start an earlier attempt left behind
	if len(participants) == model.MaxParticipants {
		if err := c.maybeStart(ctx, gameID, participants, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// maybeStart starts a full game. The caller that claims PENDING->START draws
// the assignments and stores them on the board. Any caller that finds the
// board still in START resumes from there with the stored assignments, so a
// start interrupted before GAME_LIVE is finished by the next join. Only the
// caller that moves the board to LIVE announces the start.
func (c *Controller) maybeStart(ctx context.Context, gameID model.GameID, participants []model.ClientID, report *Report) error {
	logger := c.logger.With(zap.String("game_id", string(gameID)))

	board, err := c.storage.UpdateBoard(ctx, gameID, func(b *model.Board) error {
		if err := b.Transition(model.StatusStart); err != nil {
			return err
		}
		b.Assignments = Assign(c.random, participants)
		return nil
	})
	switch {
	case errors.Is(err, model.ErrInvalidTransition):
		board, err = c.storage.GetBoard(ctx, gameID)
		if err != nil {
			return err
		}
		if board.Status != model.StatusStart {
			return nil
		}
		logger.Info("resuming game start")
	case err != nil:
		return err
	}

	report.add("assign players", c.assignPlayers(ctx, board.Assignments))

	if _, err := c.storage.UpdateBoard(ctx, gameID, func(b *model.Board) error {
		return b.Transition(model.StatusLive)
	}); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return nil
		}
		return err
	}

	report.add("publish game start", c.publish(ctx, model.NewGameStartEvent(gameID)))
	report.add("record game live", c.records.UpdateGame(ctx, gameID, records.GameUpdate{Status: model.StatusLive}))
	c.metrics.GameStarted()

	logger.Info("game started", zap.Strings("participants", clientStrings(participants)))
	return nil
}

// assignPlayers pushes each participant's symbol and color to the record
// service concurrently
func (c *Controller) assignPlayers(ctx context.Context, assignments []model.PlayerAssignment) error {
	errs := make([]error, len(assignments))

	var g errgroup.Group
	for i, a := range assignments {
		i, a := i, a
		g.Go(func() error {
			errs[i] = c.records.UpdatePlayer(ctx, a.ClientID, records.PlayerUpdate{
				Symbol: a.Symbol,
				Color:  a.Color,
			})
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}

// MarkCell records a mark for clientID and settles the outcome. Turn order is
// not enforced.
func (c *Controller) MarkCell(ctx context.Context, gameID model.GameID, clientID model.ClientID, index int) (*Report, error) {
	report := &Report{}

	if !model.ValidIndex(index) {
		return nil, model.ErrInvalidIndex
	}

	participants, err := c.storage.Participants(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !containsClient(participants, clientID) {
		return nil, model.ErrNotParticipant
	}

	var changed bool
	board, err := c.storage.UpdateBoard(ctx, gameID, func(b *model.Board) error {
		var err error
		changed, err = b.Mark(clientID, index)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrBoardNotFound) {
			return nil, model.ErrGameNotLive
		}
		return nil, err
	}
	if !changed {
		return report, nil
	}

	report.add("publish grid marked", c.publish(ctx, model.NewGridMarkedEvent(gameID, clientID, index)))

	switch board.Status {
	case model.StatusOver:
		report.add("publish game over", c.publish(ctx, model.NewGameWonEvent(gameID, board.Winner)))
		report.add("record game over", c.records.UpdateGame(ctx, gameID, records.GameUpdate{
			Status: model.StatusOver,
			Winner: board.Winner,
		}))
		c.metrics.GameFinished("won")
		c.logger.Info("game won",
			zap.String("game_id", string(gameID)),
			zap.String("winner", string(board.Winner)),
		)
	case model.StatusDraw:
		report.add("publish game drawn", c.publish(ctx, model.NewGameDrawnEvent(gameID)))
		report.add("record game over", c.records.UpdateGame(ctx, gameID, records.GameUpdate{
			Status: model.StatusOver,
		}))
		c.metrics.GameFinished("drawn")
		c.logger.Info("game drawn", zap.String("game_id", string(gameID)))
	}
	return report, nil
}

// Snapshot is a read-only view of one game
type Snapshot struct {
	Board        model.Board
	Participants []model.ClientID
}

// Snapshot reads the game's board and participants
func (c *Controller) Snapshot(ctx context.Context, gameID model.GameID) (*Snapshot, error) {
	board, err := c.storage.GetBoard(ctx, gameID)
	if err != nil {
		return nil, err
	}
	participants, err := c.storage.Participants(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Board: *board, Participants: participants}, nil
}

// Disconnect stops delivering game events to a closed connection. Registry
// bindings stay; a newer connection of the same client may own them.
func (c *Controller) Disconnect(ctx context.Context, connID model.ConnectionID) (*Report, error) {
	report := &Report{}
	report.add("release game channels", c.relay.Drop(connID))
	return report, nil
}

// Close releases every game channel subscription
func (c *Controller) Close() error {
	return c.relay.Close()
}

func (c *Controller) publish(ctx context.Context, event model.Event) error {
	return c.broker.Channel(event.GameID).Publish(ctx, event)
}

func containsClient(ids []model.ClientID, id model.ClientID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func clientStrings(ids []model.ClientID) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = string(id)
	}
	return result
}

// ControllerInterface is the set of session operations the dispatcher drives
type ControllerInterface interface {
	Connect(ctx context.Context, conn Conn, clientID model.ClientID) (*Report, error)
	SetGame(ctx context.Context, conn Conn, gameID model.GameID) (*Report, error)
	JoinGame(ctx context.Context, conn Conn, gameID model.GameID, clientID model.ClientID) (*Report, error)
	MarkCell(ctx context.Context, gameID model.GameID, clientID model.ClientID, index int) (*Report, error)
	Disconnect(ctx context.Context, connID model.ConnectionID) (*Report, error)
}

var _ ControllerInterface = (*Controller)(nil)
