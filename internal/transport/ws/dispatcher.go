package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mcoot/tictactoe-go/internal/model"
	"github.com/mcoot/tictactoe-go/internal/services/game"
)

// Request is a validated inbound event
type Request struct {
	Type     model.EventType
	GameID   model.GameID
	ClientID model.ClientID
	Index    int
}

type inbound struct {
	Type     model.EventType `json:"type"`
	GameID   model.GameID    `json:"gameId"`
	ClientID model.ClientID  `json:"clientId"`
	Index    json.RawMessage `json:"index"`
}

// ParseRequest decodes and validates an inbound frame
func ParseRequest(data []byte) (*Request, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if in.Type == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}

	req := &Request{Type: in.Type, GameID: in.GameID, ClientID: in.ClientID}

	var required []string
	switch in.Type {
	case model.EventConnected:
		required = missing(required, "clientId", in.ClientID == "")
	case model.EventSetGame:
		required = missing(required, "gameId", in.GameID == "")
	case model.EventJoinGame:
		required = missing(required, "gameId", in.GameID == "")
		required = missing(required, "clientId", in.ClientID == "")
	case model.EventMarkGrid:
		required = missing(required, "gameId", in.GameID == "")
		required = missing(required, "clientId", in.ClientID == "")
		required = missing(required, "index", len(in.Index) == 0 || string(in.Index) == "null")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	if len(required) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingField, required)
	}

	if in.Type == model.EventMarkGrid {
		index, err := parseIndex(in.Index)
		if err != nil {
			return nil, err
		}
		req.Index = index
	}
	return req, nil
}

func missing(fields []string, name string, absent bool) []string {
	if absent {
		return append(fields, name)
	}
	return fields
}

// parseIndex accepts whole numbers in grid range, including forms like 4.0
func parseIndex(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, model.ErrInvalidIndex
	}
	if f != math.Trunc(f) || !model.ValidIndex(int(f)) {
		return 0, model.ErrInvalidIndex
	}
	return int(f), nil
}

// unparsedType labels frames rejected before their type is known
const unparsedType = "UNPARSED"

// Dispatcher validates inbound frames and runs them against the controller.
// Rejections are answered with an ERROR event on the same connection.
type Dispatcher struct {
	controller game.ControllerInterface
	metrics    Metrics
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(controller game.ControllerInterface, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		controller: controller,
		metrics:    nopMetrics{},
		logger:     logger.With(zap.String("component", "dispatcher")),
	}
}

// WithMetrics sets the inbound event counters
func (d *Dispatcher) WithMetrics(m Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch handles one inbound frame from conn
func (d *Dispatcher) Dispatch(ctx context.Context, conn game.Conn, data []byte) {
	logger := d.logger.With(zap.String("conn_id", string(conn.ID())))

	req, err := ParseRequest(data)
	if err != nil {
		logger.Debug("rejected inbound frame", zap.Error(err))
		d.metrics.EventHandled(unparsedType, toProtocolError(err).code)
		d.reply(logger, conn, err)
		return
	}

	logger = logger.With(
		zap.String("event", string(req.Type)),
		zap.String("game_id", string(req.GameID)),
		zap.String("client_id", string(req.ClientID)),
	)

	var report *game.Report
	switch req.Type {
	case model.EventConnected:
		report, err = d.controller.Connect(ctx, conn, req.ClientID)
	case model.EventSetGame:
		report, err = d.controller.SetGame(ctx, conn, req.GameID)
	case model.EventJoinGame:
		report, err = d.controller.JoinGame(ctx, conn, req.GameID, req.ClientID)
	case model.EventMarkGrid:
		report, err = d.controller.MarkCell(ctx, req.GameID, req.ClientID, req.Index)
	}

	logReport(logger, report)
	if err == nil {
		d.metrics.EventHandled(string(req.Type), resultOK)
		return
	}

	code := toProtocolError(err).code
	d.metrics.EventHandled(string(req.Type), code)
	if code == CodeInternalError {
		logger.Error("event failed", zap.Error(err))
	} else {
		logger.Info("event rejected", zap.Error(err))
	}
	d.reply(logger, conn, err)
}

// Disconnect tells the controller a connection has gone
func (d *Dispatcher) Disconnect(ctx context.Context, connID model.ConnectionID) {
	logger := d.logger.With(zap.String("conn_id", string(connID)))
	report, err := d.controller.Disconnect(ctx, connID)
	if err != nil {
		logger.Error("disconnect failed", zap.Error(err))
	}
	logReport(logger, report)
}

func (d *Dispatcher) reply(logger *zap.Logger, conn game.Conn, err error) {
	if sendErr := conn.Send(ErrorEvent(err)); sendErr != nil && !errors.Is(sendErr, ErrConnectionClosed) {
		logger.Warn("failed to send error event", zap.Error(sendErr))
	}
}

func logReport(logger *zap.Logger, report *game.Report) {
	if report.OK() {
		return
	}
	logger.Warn("event completed with failures", zap.Errors("failures", report.Errors()))
}
