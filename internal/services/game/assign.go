package game

import (
	"fmt"

	"github.com/mcoot/tictactoe-go/internal/dependencies/random"
	"github.com/mcoot/tictactoe-go/internal/model"
)

// Color ranges for player colors, kept light so marks stay readable
const (
	hueRange        = 360
	saturationMin   = 60
	saturationRange = 41
	lightnessMin    = 60
	lightnessRange  = 21
)

// DrawSymbols returns the symbols for the first and second participant
func DrawSymbols(r random.Random) [2]model.Symbol {
	if r.Intn(2) == 0 {
		return [2]model.Symbol{model.SymbolX, model.SymbolO}
	}
	return [2]model.Symbol{model.SymbolO, model.SymbolX}
}

// DrawColor returns a light hsl color
func DrawColor(r random.Random) model.Color {
	h := r.Intn(hueRange)
	s := saturationMin + r.Intn(saturationRange)
	l := lightnessMin + r.Intn(lightnessRange)
	return model.Color(fmt.Sprintf("hsl(%d, %d%%, %d%%)", h, s, l))
}

// Assign draws a symbol and color for each of the two participants
func Assign(r random.Random, participants []model.ClientID) []model.PlayerAssignment {
	symbols := DrawSymbols(r)
	assignments := make([]model.PlayerAssignment, 0, len(participants))
	for i, clientID := range participants {
		if i >= len(symbols) {
			break
		}
		assignments = append(assignments, model.PlayerAssignment{
			ClientID: clientID,
			Symbol:   symbols[i],
			Color:    DrawColor(r),
		})
	}
	return assignments
}
