package model

import "errors"

// Common errors used across the application
var (
	// Registry errors
	ErrConnectionNotFound = errors.New("connection not found")
	ErrRouteUnresolved    = errors.New("no live local connection for client")

	// Game errors
	ErrBoardNotFound     = errors.New("board not found")
	ErrGameFull          = errors.New("game already has two participants")
	ErrNotParticipant    = errors.New("client is not a participant of this game")
	ErrGameNotLive       = errors.New("game is not live")
	ErrGameOver          = errors.New("game is already over")
	ErrInvalidIndex      = errors.New("invalid grid index")
	ErrCellOccupied      = errors.New("cell is already marked by another player")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Store errors
	ErrTxContention = errors.New("too many concurrent writers")
)
