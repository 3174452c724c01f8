package records

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tictactoe-go/internal/model"
)

type request struct {
	method string
	path   string
	body   map[string]any
}

type ClientSuite struct {
	suite.Suite
	server   *httptest.Server
	client   *Client
	mu       sync.Mutex
	requests []request
	status   int
	ctx      context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.requests = nil
	s.status = http.StatusOK

	router := mux.NewRouter()
	record := func(w http.ResponseWriter, r *http.Request) {
		req := request{method: r.Method, path: r.URL.EscapedPath()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &req.body)
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		status := s.status
		s.mu.Unlock()

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte("boom\n"))
			return
		}
		_, _ = w.Write([]byte(`{"status":"GAME_LIVE","name":"ignored"}`))
	}
	router.HandleFunc("/game-server/{id}", record).Methods(http.MethodGet, http.MethodPut)
	router.HandleFunc("/player/{id}", record).Methods(http.MethodPut)

	s.server = httptest.NewServer(router)
	s.client = NewClient(s.server.URL+"/", time.Second)
	s.ctx = context.Background()
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) recorded() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]request(nil), s.requests...)
}

func (s *ClientSuite) TestGetGame() {
	record, err := s.client.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(model.StatusLive, record.Status)
	s.Equal([]request{{method: http.MethodGet, path: "/game-server/g1"}}, s.recorded())
}

func (s *ClientSuite) TestUpdateGameSendsOnlySetFields() {
	err := s.client.UpdateGame(s.ctx, "g1", GameUpdate{Status: model.StatusOver, Winner: "p1"})
	s.Require().NoError(err)

	err = s.client.UpdateGame(s.ctx, "g1", GameUpdate{Status: model.StatusLive})
	s.Require().NoError(err)

	requests := s.recorded()
	s.Require().Len(requests, 2)
	s.Equal(http.MethodPut, requests[0].method)
	s.Equal(map[string]any{"status": "GAME_OVER", "winner": "p1"}, requests[0].body)
	s.Equal(map[string]any{"status": "GAME_LIVE"}, requests[1].body)
}

func (s *ClientSuite) TestUpdatePlayer() {
	err := s.client.UpdatePlayer(s.ctx, "p1", PlayerUpdate{Symbol: model.SymbolX, Color: "hsl(10, 60%, 70%)"})
	s.Require().NoError(err)

	requests := s.recorded()
	s.Require().Len(requests, 1)
	s.Equal("/player/p1", requests[0].path)
	s.Equal(map[string]any{"symbol": "X", "color": "hsl(10, 60%, 70%)"}, requests[0].body)
}

func (s *ClientSuite) TestIDsArePathEscaped() {
	_, err := s.client.GetGame(s.ctx, "a b")
	s.Require().NoError(err)
	s.Equal("/game-server/a%20b", s.recorded()[0].path)
}

func (s *ClientSuite) TestNon2xxIsRecordServiceError() {
	s.mu.Lock()
	s.status = http.StatusBadGateway
	s.mu.Unlock()

	err := s.client.UpdateGame(s.ctx, "g1", GameUpdate{Status: model.StatusLive})
	s.ErrorIs(err, ErrRecordService)

	var recErr *Error
	s.Require().ErrorAs(err, &recErr)
	s.Equal(http.StatusBadGateway, recErr.StatusCode)
	s.Equal("boom", recErr.Body)
}

func (s *ClientSuite) TestInvalidUpdatesNeverLeaveTheProcess() {
	err := s.client.UpdateGame(s.ctx, "g1", GameUpdate{Status: model.StatusDraw})
	s.ErrorIs(err, ErrInvalidUpdate)

	err = s.client.UpdatePlayer(s.ctx, "p1", PlayerUpdate{Symbol: "XO"})
	s.ErrorIs(err, ErrInvalidUpdate)

	s.Empty(s.recorded())
}

func (s *ClientSuite) TestUnreachableService() {
	s.server.Close()

	_, err := s.client.GetGame(s.ctx, "g1")
	s.ErrorIs(err, ErrRecordService)

	var urlErr *url.Error
	s.ErrorAs(err, &urlErr)
	var recErr *Error
	s.False(errors.As(err, &recErr), "no status was received")

	err = s.client.UpdatePlayer(s.ctx, "p1", PlayerUpdate{Symbol: model.SymbolX})
	s.ErrorIs(err, ErrRecordService)
}

func (s *ClientSuite) TestCancelledCallKeepsCause() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.client.UpdateGame(ctx, "g1", GameUpdate{Status: model.StatusLive})
	s.ErrorIs(err, ErrRecordService)
	s.ErrorIs(err, context.Canceled)
}

func (s *ClientSuite) TestMalformedResponseIsRecordServiceError() {
	router := mux.NewRouter()
	router.HandleFunc("/game-server/{game_id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":`))
	})
	server := httptest.NewServer(router)
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).GetGame(s.ctx, "g1")
	s.ErrorIs(err, ErrRecordService)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, GameUpdate{}.Validate())
	assert.NoError(t, GameUpdate{Status: model.StatusReset}.Validate())
	assert.ErrorIs(t, GameUpdate{Status: "GAME_LOST"}.Validate(), ErrInvalidUpdate)
	assert.NoError(t, PlayerUpdate{Color: "red"}.Validate())
	assert.NoError(t, PlayerUpdate{Symbol: "O"}.Validate())
}
