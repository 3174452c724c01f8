package model

// ClientID is the opaque token a connecting peer presents as its identity.
// The server never checks it for uniqueness; the last binding wins.
type ClientID string

// ConnectionID is a routable reference to a live connection owned by the
// transport of one server process
type ConnectionID string

// Symbol is the mark a participant plays with
type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"
)

// Color is a CSS color string, e.g. "hsl(120, 75%, 66%)"
type Color string

// PlayerAssignment is what a participant is given when a game starts
type PlayerAssignment struct {
	ClientID ClientID `json:"clientId"`
	Symbol   Symbol   `json:"symbol"`
	Color    Color    `json:"color"`
}
