package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	if _, ok := data.(WatchedEvent); !ok {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case GameState:
		o.printGameState(v)
	case HealthResult:
		o.printHealthResult(v)
	case RecordResult:
		o.printRecordResult(v)
	case WatchedEvent:
		o.printWatchedEvent(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// GameState response type (matches API)
type GameState struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Grid         model.Grid `json:"grid"`
	Winner       *string    `json:"winner"`
	Participants []string   `json:"participants"`
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Connections int    `json:"connections"`
}

// RecordResult is a game as the record service holds it
type RecordResult struct {
	GameID string `json:"game_id"`
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
}

// WatchedEvent is one event seen on a game channel
type WatchedEvent struct {
	Time  time.Time   `json:"time"`
	Event model.Event `json:"event"`
}

func (o *Output) printGameState(g GameState) {
	fmt.Fprintf(o.w, "Game: %s\n", g.ID)
	fmt.Fprintf(o.w, "Status: %s\n", g.Status)
	if len(g.Participants) > 0 {
		fmt.Fprintf(o.w, "Players: %s\n", strings.Join(g.Participants, ", "))
	}
	if g.Winner != nil {
		fmt.Fprintf(o.w, "Winner: %s\n", *g.Winner)
	}
	fmt.Fprintln(o.w)
	o.printGrid(g.Grid, g.Participants)
}

// printGrid draws the grid with the first player as X and the second as O.
// Display only; the symbols players were assigned live in the record service.
func (o *Output) printGrid(grid model.Grid, participants []string) {
	marks := map[model.ClientID]string{}
	for i, p := range participants {
		if i == 0 {
			marks[model.ClientID(p)] = "X"
		} else {
			marks[model.ClientID(p)] = "O"
		}
	}

	for row := 0; row < 3; row++ {
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			index := row*3 + col
			switch owner := grid[index]; {
			case owner == "":
				cells[col] = fmt.Sprint(index)
			case marks[owner] != "":
				cells[col] = marks[owner]
			default:
				cells[col] = "?"
			}
		}
		fmt.Fprintf(o.w, " %s \n", strings.Join(cells, " | "))
		if row < 2 {
			fmt.Fprintln(o.w, "---+---+---")
		}
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	fmt.Fprintf(o.w, "Connections: %d\n", h.Connections)
}

func (o *Output) printRecordResult(r RecordResult) {
	fmt.Fprintf(o.w, "Game: %s\n", r.GameID)
	fmt.Fprintf(o.w, "Status: %s\n", r.Status)
	if r.Winner != "" {
		fmt.Fprintf(o.w, "Winner: %s\n", r.Winner)
	}
}

func (o *Output) printWatchedEvent(e WatchedEvent) {
	timestamp := e.Time.Format("2006-01-02 15:04:05")
	var detail string
	switch e.Event.Type {
	case model.EventPlayerJoined:
		detail = string(e.Event.ClientID)
	case model.EventGridMarked:
		if e.Event.Index != nil {
			detail = fmt.Sprintf("%s at %d", e.Event.ClientID, *e.Event.Index)
		}
	case model.EventGameOver:
		if e.Event.Draw {
			detail = "draw"
		} else {
			detail = "winner " + string(e.Event.Winner)
		}
	}
	fmt.Fprintf(o.w, "[%s] %s %s\n", timestamp, e.Event.Type, detail)
}
