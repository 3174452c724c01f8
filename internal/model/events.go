package model

// EventType identifies the type of event
type EventType string

const (
	// Inbound events
	EventConnected EventType = "CONNECTED"
	EventSetGame   EventType = "SET_GAME"
	EventJoinGame  EventType = "JOIN_GAME"
	EventMarkGrid  EventType = "MARK_GRID"

	// Outbound events
	EventGreeting     EventType = "message"
	EventGameLive     EventType = "GAME_LIVE"
	EventPlayerJoined EventType = "PLAYER_JOINED"
	EventGameStart    EventType = "GAME_START"
	EventGridMarked   EventType = "GRID_MARKED"
	EventGameOver     EventType = "GAME_OVER"
	EventError        EventType = "ERROR"
)

// Greeting is sent once to every new connection
const Greeting = "Hello from the server!"

// Event is the flat JSON shape used on the wire and on game channels:
// {"type": ..., ...fields}
type Event struct {
	Type     EventType `json:"type"`
	GameID   GameID    `json:"gameId,omitempty"`
	ClientID ClientID  `json:"clientId,omitempty"`
	Index    *int      `json:"index,omitempty"`
	Grid     *Grid     `json:"grid,omitempty"`
	Winner   ClientID  `json:"winner,omitempty"`
	Draw     bool      `json:"draw,omitempty"`
	Code     string    `json:"code,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// NewGreetingEvent creates the connection greeting
func NewGreetingEvent() Event {
	return Event{Type: EventGreeting, Message: Greeting}
}

// NewGameLiveEvent carries the current grid to a client viewing a live game
func NewGameLiveEvent(gameID GameID, grid Grid) Event {
	return Event{Type: EventGameLive, GameID: gameID, Grid: &grid}
}

// NewPlayerJoinedEvent announces a participant
func NewPlayerJoinedEvent(gameID GameID, clientID ClientID) Event {
	return Event{Type: EventPlayerJoined, GameID: gameID, ClientID: clientID}
}

// NewGameStartEvent announces that both players are in
func NewGameStartEvent(gameID GameID) Event {
	return Event{Type: EventGameStart, GameID: gameID}
}

// NewGridMarkedEvent announces a mark; ClientID is the player who made it
func NewGridMarkedEvent(gameID GameID, clientID ClientID, index int) Event {
	return Event{Type: EventGridMarked, GameID: gameID, ClientID: clientID, Index: &index}
}

// NewGameWonEvent announces a decided game
func NewGameWonEvent(gameID GameID, winner ClientID) Event {
	return Event{Type: EventGameOver, GameID: gameID, Winner: winner}
}

// NewGameDrawnEvent announces a full board without a winner
func NewGameDrawnEvent(gameID GameID) Event {
	return Event{Type: EventGameOver, GameID: gameID, Draw: true}
}

// NewErrorEvent reports a rejected inbound event to its sender
func NewErrorEvent(code, message string) Event {
	return Event{Type: EventError, Code: code, Message: message}
}
