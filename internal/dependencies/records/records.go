package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// ErrRecordService is wrapped by every failed call to the record service,
// whether the service answered with an error status or was never reached
var ErrRecordService = errors.New("record service error")

// ErrInvalidUpdate is returned for payloads the record schema would reject
var ErrInvalidUpdate = errors.New("invalid record update")

// Store is the persistent record service for games and players
type Store interface {
	GetGame(ctx context.Context, gameID model.GameID) (*GameRecord, error)
	UpdateGame(ctx context.Context, gameID model.GameID, update GameUpdate) error
	UpdatePlayer(ctx context.Context, clientID model.ClientID, update PlayerUpdate) error
}

// GameRecord is the stored state of a game. Fields the server does not use
// are ignored.
type GameRecord struct {
	Status model.Status   `json:"status,omitempty"`
	Winner model.ClientID `json:"winner,omitempty"`
}

// GameUpdate is the body of a game update; empty fields are left unchanged
type GameUpdate struct {
	Status model.Status   `json:"status,omitempty"`
	Winner model.ClientID `json:"winner,omitempty"`
}

// PlayerUpdate is the body of a player update; empty fields are left unchanged
type PlayerUpdate struct {
	Symbol model.Symbol `json:"symbol,omitempty"`
	Color  model.Color  `json:"color,omitempty"`
}

// recordStatuses are the statuses the record schema accepts. It has no draw
// value; draws are recorded as GAME_OVER without a winner.
var recordStatuses = map[model.Status]bool{
	model.StatusPending: true,
	model.StatusStart:   true,
	model.StatusLive:    true,
	model.StatusOver:    true,
	model.StatusReset:   true,
}

// Validate checks the update against the record schema
func (u GameUpdate) Validate() error {
	if u.Status != "" && !recordStatuses[u.Status] {
		return fmt.Errorf("%w: status %q", ErrInvalidUpdate, u.Status)
	}
	return nil
}

// Validate checks the update against the record schema
func (u PlayerUpdate) Validate() error {
	if u.Symbol != "" && utf8.RuneCountInString(string(u.Symbol)) != 1 {
		return fmt.Errorf("%w: symbol %q must be one character", ErrInvalidUpdate, u.Symbol)
	}
	return nil
}

// Error is a non-2xx response from the record service
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return ErrRecordService
}

// Client talks to the record service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Store = (*Client)(nil)

// NewClient creates a record service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) GetGame(ctx context.Context, gameID model.GameID) (*GameRecord, error) {
	var record GameRecord
	if err := c.do(ctx, http.MethodGet, gamePath(gameID), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) UpdateGame(ctx context.Context, gameID model.GameID, update GameUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, gamePath(gameID), update, nil)
}

func (c *Client) UpdatePlayer(ctx context.Context, clientID model.ClientID, update PlayerUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/player/"+url.PathEscape(string(clientID)), update, nil)
}

func gamePath(gameID model.GameID) string {
	return "/game-server/" + url.PathEscape(string(gameID))
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: request failed: %w", ErrRecordService, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: failed to read response: %w", ErrRecordService, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %s %s: failed to parse response: %w", ErrRecordService, method, path, err)
		}
	}
	return nil
}
