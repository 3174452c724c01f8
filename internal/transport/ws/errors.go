package ws

import (
	"errors"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// Protocol error codes sent in ERROR events
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeUnknownType    = "UNKNOWN_TYPE"
	CodeMissingField   = "MISSING_FIELD"
	CodeInvalidIndex   = "INVALID_INDEX"
	CodeGameFull       = "GAME_FULL"
	CodeNotParticipant = "NOT_PARTICIPANT"
	CodeGameNotLive    = "GAME_NOT_LIVE"
	CodeGameOver       = "GAME_OVER"
	CodeCellOccupied   = "CELL_OCCUPIED"
	CodeInternalError  = "INTERNAL_ERROR"
)

// Inbound validation errors
var (
	ErrInvalidMessage = errors.New("message is not a JSON object")
	ErrUnknownType    = errors.New("unknown event type")
	ErrMissingField   = errors.New("missing required field")
)

// protocolError is an error with the code and message a client sees
type protocolError struct {
	code    string
	message string
}

// toProtocolError maps an error to what is reported to the client. Internal
// failures are not described beyond their code.
func toProtocolError(err error) protocolError {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return protocolError{CodeInvalidMessage, err.Error()}
	case errors.Is(err, ErrUnknownType):
		return protocolError{CodeUnknownType, err.Error()}
	case errors.Is(err, ErrMissingField):
		return protocolError{CodeMissingField, err.Error()}
	case errors.Is(err, model.ErrInvalidIndex):
		return protocolError{CodeInvalidIndex, "Index must be between 0 and 8"}
	case errors.Is(err, model.ErrGameFull):
		return protocolError{CodeGameFull, "Game already has two players"}
	case errors.Is(err, model.ErrNotParticipant):
		return protocolError{CodeNotParticipant, "Not a player in this game"}
	case errors.Is(err, model.ErrGameOver):
		return protocolError{CodeGameOver, "Game is already over"}
	case errors.Is(err, model.ErrGameNotLive):
		return protocolError{CodeGameNotLive, "Game has not started"}
	case errors.Is(err, model.ErrCellOccupied):
		return protocolError{CodeCellOccupied, "Cell is already marked"}
	default:
		return protocolError{CodeInternalError, "Internal server error"}
	}
}

// ErrorEvent builds the ERROR event reported for err
func ErrorEvent(err error) model.Event {
	pe := toProtocolError(err)
	return model.NewErrorEvent(pe.code, pe.message)
}
