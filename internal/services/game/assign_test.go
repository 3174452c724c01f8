package game

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/mcoot/tictactoe-go/internal/dependencies/mocks"
	"github.com/mcoot/tictactoe-go/internal/model"
)

// rapidRandom lets rapid choose every random draw
type rapidRandom struct {
	t *rapid.T
}

func (r rapidRandom) Intn(n int) int {
	return rapid.IntRange(0, n-1).Draw(r.t, "intn")
}

func TestSymbolsAreComplementary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		symbols := DrawSymbols(rapidRandom{t})
		if symbols != [2]model.Symbol{model.SymbolX, model.SymbolO} &&
			symbols != [2]model.Symbol{model.SymbolO, model.SymbolX} {
			t.Fatalf("symbols %v are not complementary", symbols)
		}
	})
}

func TestColorsStayInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		color := DrawColor(rapidRandom{t})

		var h, s, l int
		if _, err := fmt.Sscanf(string(color), "hsl(%d, %d%%, %d%%)", &h, &s, &l); err != nil {
			t.Fatalf("color %q is malformed: %v", color, err)
		}
		if h < 0 || h >= 360 || s < 60 || s > 100 || l < 60 || l > 80 {
			t.Fatalf("color %q out of range", color)
		}
	})
}

func TestAssignGivesEachParticipantADistinctSymbol(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		assignments := Assign(rapidRandom{t}, []model.ClientID{"p1", "p2"})
		if len(assignments) != 2 {
			t.Fatalf("got %d assignments", len(assignments))
		}
		if assignments[0].Symbol == assignments[1].Symbol {
			t.Fatalf("both players got %s", assignments[0].Symbol)
		}
	})
}

func TestAssignUsesDrawsInOrder(t *testing.T) {
	r := mocks.NewMockRandom()
	r.QueueIntn(0, 359, 0, 0, 12, 40, 20)

	assignments := Assign(r, []model.ClientID{"a", "b"})

	assert.Equal(t, []model.PlayerAssignment{
		{ClientID: "a", Symbol: model.SymbolX, Color: "hsl(359, 60%, 60%)"},
		{ClientID: "b", Symbol: model.SymbolO, Color: "hsl(12, 100%, 80%)"},
	}, assignments)
}

func TestReport(t *testing.T) {
	var nilReport *Report
	assert.True(t, nilReport.OK())
	assert.Empty(t, nilReport.Errors())

	report := &Report{}
	report.add("noop", nil)
	assert.True(t, report.OK())

	boom := errors.New("boom")
	report.add("publish", boom)
	report.add("record", boom)
	assert.False(t, report.OK())
	assert.Len(t, report.Errors(), 2)
	assert.ErrorIs(t, report.Err(), boom)
	assert.EqualError(t, report.Errors()[0], "publish: boom")
}
