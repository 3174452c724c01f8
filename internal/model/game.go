package model

// GameID identifies one match. Games are created implicitly on first reference.
type GameID string

// MaxParticipants is the number of players a game admits
const MaxParticipants = 2

// Status represents the current phase of a game
type Status string

const (
	StatusPending Status = "GAME_PENDING" // Board exists, waiting for players
	StatusStart   Status = "GAME_START"   // Second player joined, assignments in flight
	StatusLive    Status = "GAME_LIVE"    // Marks accepted
	StatusOver    Status = "GAME_OVER"    // Decided, Winner set
	StatusDraw    Status = "GAME_DRAW"    // Board full without a line
	StatusReset   Status = "GAME_RESET"   // Schema value only, never entered
)

// transitions lists every allowed status change
var transitions = map[Status][]Status{
	StatusPending: {StatusStart, StatusLive},
	StatusStart:   {StatusLive},
	StatusLive:    {StatusOver, StatusDraw},
}

// CanTransition reports whether a game may move from one status to another
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the game has been decided
func (s Status) IsTerminal() bool {
	return s == StatusOver || s == StatusDraw
}

// IsValid returns true for known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStart, StatusLive, StatusOver, StatusDraw, StatusReset:
		return true
	}
	return false
}
