package model

import (
	"encoding/json"
	"fmt"
)

// GridSize is the number of cells on a board
const GridSize = 9

// lines are the eight index triples that win a game
var lines = [8][3]int{
	{0, 1, 2}, // Rows
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6}, // Columns
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8}, // Diagonals
	{2, 4, 6},
}

// Lines returns the winning index triples
func Lines() [8][3]int {
	return lines
}

// Grid is the ordered 3x3 board. An empty ClientID means the cell is free.
type Grid [GridSize]ClientID

// ValidIndex returns true if the index addresses a cell
func ValidIndex(index int) bool {
	return index >= 0 && index < GridSize
}

// HasLine returns true if the client owns all three cells of any line
func (g Grid) HasLine(clientID ClientID) bool {
	if clientID == "" {
		return false
	}
	for _, line := range lines {
		if g[line[0]] == clientID && g[line[1]] == clientID && g[line[2]] == clientID {
			return true
		}
	}
	return false
}

// Winner returns the owner of a completed line, or "" if there is none
func (g Grid) Winner() ClientID {
	for _, line := range lines {
		if g[line[0]] != "" && g[line[0]] == g[line[1]] && g[line[1]] == g[line[2]] {
			return g[line[0]]
		}
	}
	return ""
}

// Full returns true if every cell is marked
func (g Grid) Full() bool {
	for _, cell := range g {
		if cell == "" {
			return false
		}
	}
	return true
}

// MarshalJSON encodes empty cells as null
func (g Grid) MarshalJSON() ([]byte, error) {
	cells := make([]*ClientID, GridSize)
	for i := range g {
		if g[i] != "" {
			id := g[i]
			cells[i] = &id
		}
	}
	return json.Marshal(cells)
}

// UnmarshalJSON accepts arrays of up to nine strings or nulls. Shorter arrays
// leave the remaining cells empty.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var cells []*ClientID
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	if len(cells) > GridSize {
		return fmt.Errorf("grid has %d cells, want at most %d", len(cells), GridSize)
	}
	*g = Grid{}
	for i, cell := range cells {
		if cell != nil {
			g[i] = *cell
		}
	}
	return nil
}

// Board is the stored state of one game: the grid plus the single
// authoritative status. Assignments are drawn once, when the start is claimed.
type Board struct {
	GameID      GameID             `json:"-"`
	Grid        Grid               `json:"grid"`
	Status      Status             `json:"status,omitempty"`
	Winner      ClientID           `json:"winner,omitempty"`
	Assignments []PlayerAssignment `json:"assignments,omitempty"`
}

// NewBoard creates an empty pending board
func NewBoard(gameID GameID) *Board {
	return &Board{
		GameID: gameID,
		Status: StatusPending,
	}
}

// Clone returns a copy that shares no state with b
func (b Board) Clone() Board {
	if b.Assignments != nil {
		b.Assignments = append([]PlayerAssignment(nil), b.Assignments...)
	}
	return b
}

// Transition moves the board to a new status if the transition is allowed
func (b *Board) Transition(to Status) error {
	if !b.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	return nil
}

// Mark records the client's mark at index and settles the outcome.
// Re-marking a cell the client already owns changes nothing.
func (b *Board) Mark(clientID ClientID, index int) (changed bool, err error) {
	if !ValidIndex(index) {
		return false, ErrInvalidIndex
	}
	if b.Status.IsTerminal() {
		return false, ErrGameOver
	}
	if b.Status != StatusLive {
		return false, ErrGameNotLive
	}

	switch b.Grid[index] {
	case clientID:
		return false, nil
	case "":
	default:
		return false, ErrCellOccupied
	}

	b.Grid[index] = clientID

	if b.Grid.HasLine(clientID) {
		b.Winner = clientID
		return true, b.Transition(StatusOver)
	}
	if b.Grid.Full() {
		return true, b.Transition(StatusDraw)
	}
	return true, nil
}
