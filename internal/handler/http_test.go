package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/leaderboard-api/internal/config"
	"github.com/leaderboard-api/internal/event"
	"github.com/leaderboard-api/internal/resolver"
	"github.com/leaderboard-api/internal/session"
	"github.com/leaderboard-api/internal/storage/memory"
	"github.com/leaderboard-api/internal/websocket"
)

type apiErrorDetail struct {
	Message string `json:"message"`
}

type apiError struct {
	Message string           `json:"message"`
	Status  int              `json:"status"`
	Data    []apiErrorDetail `json:"data"`
}

type apiEnvelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []apiError                 `json:"errors"`
}

type HandlerSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *memory.Storage
	bus     *event.Bus
	hub     *websocket.Hub
	server  *httptest.Server
	client  *http.Client
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	redisClient := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.storage = memory.New()
	sessions := session.NewStoreWithClient(redisClient, 15*time.Minute)
	s.bus = event.NewBus(logger)

	s.hub = websocket.NewHub(s.bus, logger)
	go s.hub.Run()

	res := resolver.New(s.storage, sessions, s.bus, logger)

	sessionCfg := config.SessionConfig{CookieName: "leaderboard_session", TTL: 15 * time.Minute}
	corsCfg := config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}}

	h := NewHandler(res, s.hub, sessionCfg, corsCfg, logger)
	s.server = httptest.NewServer(h.Router())

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{Jar: jar}
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
	s.hub.Stop()
	s.bus.Close()
	s.mini.Close()
}

// do posts an operation and decodes the envelope, asserting the transport
// status is always 200
func (s *HandlerSuite) do(operation string, input interface{}) apiEnvelope {
	body := map[string]interface{}{"operation": operation}
	if input != nil {
		body["input"] = input
	}
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := s.client.Post(s.server.URL+"/graphql", "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var env apiEnvelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (s *HandlerSuite) register(email, password, name string) {
	env := s.do("createUser", map[string]interface{}{
		"email": email, "password": password, "name": name,
	})
	s.Require().Empty(env.Errors)
}

func (s *HandlerSuite) login(email, password string) apiEnvelope {
	return s.do("login", map[string]interface{}{"email": email, "password": password})
}

func (s *HandlerSuite) TestHealthEndpoints() {
	for _, path := range []string{"/health", "/ready"} {
		resp, err := s.client.Get(s.server.URL + path)
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
	}
}

func (s *HandlerSuite) TestUnauthenticatedMutationKeepsTransportStatusOK() {
	env := s.do("createPlayer", map[string]interface{}{"name": "Ann", "score": 5})

	s.Require().Len(env.Errors, 1)
	s.Equal(401, env.Errors[0].Status)
	s.Equal("Not authenticated.", env.Errors[0].Message)

	listing := s.do("getAllPlayers", nil)
	s.Require().Empty(listing.Errors)
	var players []json.RawMessage
	s.Require().NoError(json.Unmarshal(listing.Data["getAllPlayers"], &players))
	s.Empty(players)
}

func (s *HandlerSuite) TestRegisterLoginSessionFlow() {
	s.register("ann@example.com", "secret", "Ann")

	env := s.login("ann@example.com", "secret")
	s.Require().Empty(env.Errors)

	var identity struct {
		IsLoggedIn bool   `json:"isLoggedIn"`
		Email      string `json:"email"`
	}
	s.Require().NoError(json.Unmarshal(env.Data["login"], &identity))
	s.True(identity.IsLoggedIn)
	s.Equal("ann@example.com", identity.Email)

	// Cookie from login authenticates the session query.
	env = s.do("session", nil)
	s.Require().Empty(env.Errors)
	s.Require().NoError(json.Unmarshal(env.Data["session"], &identity))
	s.True(identity.IsLoggedIn)

	env = s.do("logout", nil)
	s.Require().Empty(env.Errors)

	env = s.do("session", nil)
	s.Require().Empty(env.Errors)
	s.Require().NoError(json.Unmarshal(env.Data["session"], &identity))
	s.False(identity.IsLoggedIn)
}

func (s *HandlerSuite) TestLoginFailures() {
	s.register("ann@example.com", "secret", "Ann")

	env := s.login("nobody@example.com", "secret")
	s.Require().Len(env.Errors, 1)
	s.Equal(404, env.Errors[0].Status)

	env = s.login("ann@example.com", "wrong")
	s.Require().Len(env.Errors, 1)
	s.Equal(422, env.Errors[0].Status)
	s.Equal("Incorrect password.", env.Errors[0].Message)
}

func (s *HandlerSuite) TestPlayerLifecycleOverHTTP() {
	s.register("ann@example.com", "secret", "Ann")
	s.Require().Empty(s.login("ann@example.com", "secret").Errors)

	env := s.do("createPlayer", map[string]interface{}{"name": "Ann", "score": 5})
	s.Require().Empty(env.Errors)

	var player struct {
		PlayerID string `json:"playerId"`
		Name     string `json:"name"`
		Score    int64  `json:"score"`
	}
	s.Require().NoError(json.Unmarshal(env.Data["createPlayer"], &player))
	s.NotEmpty(player.PlayerID)

	env = s.do("updatePlayer", map[string]interface{}{
		"playerId": player.PlayerID, "name": "Ann B", "score": 10,
	})
	s.Require().Empty(env.Errors)

	env = s.do("deletePlayer", map[string]interface{}{"playerId": player.PlayerID})
	s.Require().Empty(env.Errors)
	var deleted struct {
		Name  string `json:"name"`
		Score int64  `json:"score"`
	}
	s.Require().NoError(json.Unmarshal(env.Data["deletePlayer"], &deleted))
	s.Equal("Ann B", deleted.Name)
	s.EqualValues(10, deleted.Score)

	listing := s.do("getAllPlayers", nil)
	var players []json.RawMessage
	s.Require().NoError(json.Unmarshal(listing.Data["getAllPlayers"], &players))
	s.Empty(players)
}

func (s *HandlerSuite) TestValidationFailureListInPayload() {
	s.register("ann@example.com", "secret", "Ann")
	s.Require().Empty(s.login("ann@example.com", "secret").Errors)

	env := s.do("createPlayer", map[string]interface{}{"name": "Ann!", "score": -1})
	s.Require().Len(env.Errors, 1)
	s.Equal(422, env.Errors[0].Status)
	s.Equal("Invalid input.", env.Errors[0].Message)
	s.Require().Len(env.Errors[0].Data, 2)
	s.Equal("Invalid Name.", env.Errors[0].Data[0].Message)
	s.Equal("Invalid score.", env.Errors[0].Data[1].Message)
}

func (s *HandlerSuite) TestUnknownOperation() {
	env := s.do("dropAllTables", nil)
	s.Require().Len(env.Errors, 1)
	s.Equal(400, env.Errors[0].Status)
}

func (s *HandlerSuite) TestSubscriptionReceivesUpsertEvent() {
	s.register("ann@example.com", "secret", "Ann")
	s.Require().Empty(s.login("ann@example.com", "secret").Errors)

	wsURL := strings.Replace(s.server.URL, "http", "ws", 1) + "/graphql"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	s.Require().NoError(conn.WriteJSON(map[string]string{
		"type":  "subscribe",
		"topic": "upsertPlayer",
	}))

	// Wait for the subscription ack before mutating.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack struct {
		Type string `json:"type"`
	}
	s.Require().NoError(conn.ReadJSON(&ack))
	s.Require().Equal("subscribed", ack.Type)

	// Let the hub drain the pending subscription request.
	time.Sleep(50 * time.Millisecond)

	env := s.do("createPlayer", map[string]interface{}{"name": "Ann", "score": 5})
	s.Require().Empty(env.Errors)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev struct {
		Type      string `json:"type"`
		Operation string `json:"operation"`
		Data      struct {
			Name  string `json:"name"`
			Score int64  `json:"score"`
		} `json:"data"`
	}
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal("upsertPlayer", ev.Type)
	s.Equal("create", ev.Operation)
	s.Equal("Ann", ev.Data.Name)
	s.EqualValues(5, ev.Data.Score)
}

func (s *HandlerSuite) TestSubscriptionDeleteTopicCarriesPriorRecord() {
	s.register("ann@example.com", "secret", "Ann")
	s.Require().Empty(s.login("ann@example.com", "secret").Errors)

	env := s.do("createPlayer", map[string]interface{}{"name": "Ann", "score": 5})
	s.Require().Empty(env.Errors)
	var player struct {
		PlayerID string `json:"playerId"`
	}
	s.Require().NoError(json.Unmarshal(env.Data["createPlayer"], &player))

	wsURL := strings.Replace(s.server.URL, "http", "ws", 1) + "/graphql"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	s.Require().NoError(conn.WriteJSON(map[string]string{
		"type":  "subscribe",
		"topic": "deletePlayer",
	}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack struct {
		Type string `json:"type"`
	}
	s.Require().NoError(conn.ReadJSON(&ack))
	s.Require().Equal("subscribed", ack.Type)
	time.Sleep(50 * time.Millisecond)

	env = s.do("deletePlayer", map[string]interface{}{"playerId": player.PlayerID})
	s.Require().Empty(env.Errors)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev struct {
		Type string `json:"type"`
		Data struct {
			Name  string `json:"name"`
			Score int64  `json:"score"`
		} `json:"data"`
	}
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal("deletePlayer", ev.Type)
	s.Equal("Ann", ev.Data.Name)
	s.EqualValues(5, ev.Data.Score)
}
