package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizrush/go/internal/content"
	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/registry"
	"github.com/mcdev12/quizrush/go/internal/room"
)

const readTimeout = 2 * time.Second

type stubProvider struct{}

func (stubProvider) Questions(_ context.Context, req content.Request) ([]models.Question, error) {
	if req.Set != "demo" {
		return nil, content.ErrSetNotFound
	}
	return []models.Question{
		{
			ID:        "q1",
			Type:      models.QuestionTypeMultipleChoice,
			Content:   "What is the capital of France?",
			Options:   []string{"Paris", "London", "Berlin", "Madrid"},
			Answer:    "Paris",
			TimeLimit: 30,
			Points:    100,
			Hint:      "Eiffel Tower",
		},
		{
			ID:        "q2",
			Type:      models.QuestionTypeText,
			Content:   "Which planet is known as the red planet?",
			Answer:    "Mars",
			TimeLimit: 30,
			Points:    100,
		},
	}, nil
}

func (stubProvider) Sets(context.Context) ([]content.SetInfo, error) {
	return []content.SetInfo{{Name: "demo", Title: "Demo", Questions: 2}}, nil
}

type testServer struct {
	*httptest.Server
	rooms *registry.Registry
	clock *clockwork.FakeClock
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DefaultQuestionSet = "demo"
	cfg.DefaultSettings.CountdownSeconds = 0
	if mutate != nil {
		mutate(&cfg)
	}

	clock := clockwork.NewFakeClock()
	cm := NewConnectionManager(cfg.Connection)
	rooms := registry.New(room.Options{Clock: clock, Publisher: cm})
	svc := NewService(cfg, cm, rooms, stubProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	srv := httptest.NewServer(svc.Router())
	t.Cleanup(func() {
		srv.Close()
		rooms.CloseAll(events.CloseReasonShutdown)
		cancel()
	})
	return &testServer{Server: srv, rooms: rooms, clock: clock}
}

func (s *testServer) createRoom(t *testing.T, body string) string {
	t.Helper()
	resp, err := http.Post(s.URL+"/api/rooms", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created CreateRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Len(t, created.Code, registry.CodeLength)
	return created.Code
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wireEvent is an outbound frame as a client sees it.
type wireEvent struct {
	Event    events.Type     `json:"event"`
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event InboundType, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(InboundMessage{Event: event, Data: payload}))
}

// expect reads frames until one of type typ arrives and returns it along with
// every frame read before it.
func expect(t *testing.T, conn *websocket.Conn, typ events.Type) (wireEvent, []wireEvent) {
	t.Helper()
	var skipped []wireEvent
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", typ)
		if ev.Event == typ {
			return ev, skipped
		}
		skipped = append(skipped, ev)
	}
}

func decode[T any](t *testing.T, ev wireEvent) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ev.Data, &v))
	return v
}

func joinRoom(t *testing.T, conn *websocket.Conn, code, name string) events.RoomJoinedPayload {
	t.Helper()
	send(t, conn, InboundRoomJoin, JoinRequest{RoomCode: strings.ToLower(code), PlayerName: name})
	ev, _ := expect(t, conn, events.TypeRoomJoined)
	return decode[events.RoomJoinedPayload](t, ev)
}

// expectPlayerJoined skips player:joined frames until the one announcing
// playerID. A joiner also sees its own announcement.
func expectPlayerJoined(t *testing.T, conn *websocket.Conn, playerID string) events.PlayerJoinedPayload {
	t.Helper()
	for {
		ev, _ := expect(t, conn, events.TypePlayerJoined)
		joined := decode[events.PlayerJoinedPayload](t, ev)
		if joined.Player.ID == playerID {
			return joined
		}
	}
}

// connected reports a player's connection flag from the room snapshot.
func (s *testServer) connected(t *testing.T, code, playerID string) bool {
	t.Helper()
	rm, err := s.rooms.Get(code)
	require.NoError(t, err)
	session, err := rm.Snapshot()
	require.NoError(t, err)
	for _, p := range session.Players {
		if p.ID == playerID {
			return p.IsConnected
		}
	}
	t.Fatalf("player %s not in room %s", playerID, code)
	return false
}

func TestGameOverWebSocket(t *testing.T) {
	srv := newTestServer(t, nil)
	code := srv.createRoom(t, `{"questionSet":"demo"}`)

	host := srv.dial(t, "player_id=host")
	joined := joinRoom(t, host, code, "Host")
	assert.Equal(t, "host", joined.Player.ID)
	assert.True(t, joined.Player.IsHost)

	guest := srv.dial(t, "player_id=guest")
	joinRoom(t, guest, code, "Guest")
	assert.Equal(t, 2, expectPlayerJoined(t, host, "guest").PlayerCount)

	// Only the host may start
	send(t, guest, InboundGameStart, struct{}{})
	ev, _ := expect(t, guest, events.TypeError)
	assert.Equal(t, room.ErrNotHost.Error(), decode[events.ErrorPayload](t, ev).Message)

	send(t, host, InboundGameStart, struct{}{})
	_, skipped := expect(t, host, events.TypeQuestionNew)
	for _, ev := range skipped {
		assert.NotEqual(t, events.TypeError, ev.Event, "host must not see the guest's rejection")
	}
	ev, _ = expect(t, guest, events.TypeQuestionNew)
	q := decode[events.QuestionNewPayload](t, ev)
	assert.Equal(t, "q1", q.Question.ID)

	send(t, guest, InboundAnswerSubmit, map[string]any{"questionId": "q1", "answer": "Paris", "responseTime": 0})
	ev, _ = expect(t, guest, events.TypeAnswerResult)
	result := decode[events.AnswerResult](t, ev)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, 150, result.PointsEarned)

	ev, _ = expect(t, host, events.TypePlayerScored)
	assert.Equal(t, "guest", decode[events.PlayerScoredPayload](t, ev).PlayerID)

	// Duplicate answers are rejected
	send(t, guest, InboundAnswerSubmit, map[string]any{"questionId": "q1", "answer": "Paris", "responseTime": 1})
	ev, _ = expect(t, guest, events.TypeError)
	assert.Equal(t, room.ErrDuplicateAnswer.Error(), decode[events.ErrorPayload](t, ev).Message)

	send(t, host, InboundAnswerSubmit, map[string]any{"questionId": "q1", "answer": "London", "responseTime": 3})
	ev, _ = expect(t, host, events.TypeAnswerResult)
	assert.False(t, decode[events.AnswerResult](t, ev).IsCorrect)

	ev, _ = expect(t, guest, events.TypeQuestionEnded)
	ended := decode[events.QuestionEndedPayload](t, ev)
	assert.Equal(t, "Paris", ended.CorrectAnswer)
	assert.Equal(t, events.EndReasonAllAnswered, ended.Reason)
}

func TestPauseAndPowerUpOverWebSocket(t *testing.T) {
	srv := newTestServer(t, nil)
	code := srv.createRoom(t, `{"questionSet":"demo","settings":{"powerUpCharges":1}}`)

	host := srv.dial(t, "player_id=host")
	joinRoom(t, host, code, "Host")
	send(t, host, InboundGameStart, struct{}{})
	expect(t, host, events.TypeQuestionNew)

	send(t, host, InboundPowerUpUse, PowerUpRequest{Type: string(models.PowerUpHint)})
	ev, _ := expect(t, host, events.TypePowerUpHint)
	assert.Equal(t, "Eiffel Tower", decode[events.PowerUpHintPayload](t, ev).Hint)

	send(t, host, InboundPowerUpUse, PowerUpRequest{Type: string(models.PowerUpHint)})
	ev, _ = expect(t, host, events.TypeError)
	assert.Equal(t, room.ErrNoCharges.Error(), decode[events.ErrorPayload](t, ev).Message)

	send(t, host, InboundGamePause, struct{}{})
	expect(t, host, events.TypeGamePaused)

	send(t, host, InboundAnswerSubmit, map[string]any{"questionId": "q1", "answer": "Paris", "responseTime": 1})
	ev, _ = expect(t, host, events.TypeError)
	assert.Equal(t, room.ErrNotInProgress.Error(), decode[events.ErrorPayload](t, ev).Message)

	send(t, host, InboundGameResume, struct{}{})
	expect(t, host, events.TypeGameResumed)
}

func TestJoinErrorsOverWebSocket(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := srv.dial(t, "player_id=p1")

	send(t, conn, InboundRoomJoin, JoinRequest{RoomCode: "ZZZZZZ", PlayerName: "Ana"})
	ev, _ := expect(t, conn, events.TypeError)
	assert.Equal(t, registry.ErrRoomNotFound.Error(), decode[events.ErrorPayload](t, ev).Message)

	send(t, conn, InboundGameStart, struct{}{})
	ev, _ = expect(t, conn, events.TypeError)
	assert.Equal(t, ErrNotInRoom.Error(), decode[events.ErrorPayload](t, ev).Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"game:explode"}`)))
	ev, _ = expect(t, conn, events.TypeError)
	assert.Contains(t, decode[events.ErrorPayload](t, ev).Message, ErrUnknownEvent.Error())

	code := srv.createRoom(t, `{"questionSet":"demo","settings":{"maxPlayers":1}}`)
	joinRoom(t, conn, code, "Ana")

	other := srv.dial(t, "player_id=p2")
	send(t, other, InboundRoomJoin, JoinRequest{RoomCode: code, PlayerName: "Bo"})
	ev, _ = expect(t, other, events.TypeError)
	assert.Equal(t, room.ErrRoomFull.Error(), decode[events.ErrorPayload](t, ev).Message)
}

func TestDisconnectAndReconnect(t *testing.T) {
	srv := newTestServer(t, nil)
	code := srv.createRoom(t, `{"questionSet":"demo"}`)

	host := srv.dial(t, "player_id=host")
	joinRoom(t, host, code, "Host")

	guest := srv.dial(t, "player_id=guest&room="+code)
	joinRoom(t, guest, code, "Guest")
	expectPlayerJoined(t, host, "guest")

	require.NoError(t, guest.Close())
	ev, _ := expect(t, host, events.TypePlayerDisconnected)
	assert.Equal(t, "guest", decode[events.PlayerDisconnectedPayload](t, ev).PlayerID)

	back := srv.dial(t, "player_id=guest")
	joined := joinRoom(t, back, code, "")
	assert.Equal(t, "Guest", joined.Player.Nickname)
	expect(t, host, events.TypePlayerReconnected)
}

func TestSecondConnectionKeepsPlayerConnected(t *testing.T) {
	srv := newTestServer(t, nil)
	code := srv.createRoom(t, `{"questionSet":"demo"}`)

	host := srv.dial(t, "player_id=host")
	joinRoom(t, host, code, "Host")

	first := srv.dial(t, "player_id=guest")
	joinRoom(t, first, code, "Guest")
	second := srv.dial(t, "player_id=guest")
	joinRoom(t, second, code, "Guest")

	require.NoError(t, first.Close())

	// The guest still has a live connection, so the next broadcast the host
	// sees is the game starting, not a disconnect.
	send(t, host, InboundGameStart, struct{}{})
	_, skipped := expect(t, host, events.TypeGameStarted)
	for _, ev := range skipped {
		assert.NotEqual(t, events.TypePlayerDisconnected, ev.Event)
	}
}

func TestRejectedJoinKeepsPreviousRoom(t *testing.T) {
	srv := newTestServer(t, nil)
	first := srv.createRoom(t, `{"questionSet":"demo"}`)
	full := srv.createRoom(t, `{"questionSet":"demo","settings":{"maxPlayers":1}}`)

	p1 := srv.dial(t, "player_id=p1")
	joinRoom(t, p1, first, "Ana")
	p2 := srv.dial(t, "player_id=p2")
	joinRoom(t, p2, full, "Bo")

	send(t, p1, InboundRoomJoin, JoinRequest{RoomCode: full, PlayerName: "Ana"})
	ev, _ := expect(t, p1, events.TypeError)
	assert.Equal(t, room.ErrRoomFull.Error(), decode[events.ErrorPayload](t, ev).Message)
	assert.Equal(t, first, ev.RoomCode)
	assert.True(t, srv.connected(t, first, "p1"))

	// The connection still drives the first room.
	send(t, p1, InboundGameStart, struct{}{})
	_, skipped := expect(t, p1, events.TypeGameStarted)
	for _, ev := range skipped {
		assert.NotEqual(t, events.TypePlayerDisconnected, ev.Event)
	}
}

func TestJoinAnotherRoomLeavesPrevious(t *testing.T) {
	srv := newTestServer(t, nil)
	first := srv.createRoom(t, `{"questionSet":"demo"}`)
	second := srv.createRoom(t, `{"questionSet":"demo"}`)

	p1 := srv.dial(t, "player_id=p1")
	joinRoom(t, p1, first, "Ana")
	joined := joinRoom(t, p1, second, "Ana")
	assert.Equal(t, second, joined.Session.Code)

	// Frames from one connection are handled in order, so once the start is
	// seen the previous room has been left.
	send(t, p1, InboundGameStart, struct{}{})
	expect(t, p1, events.TypeGameStarted)

	assert.False(t, srv.connected(t, first, "p1"))
	assert.True(t, srv.connected(t, second, "p1"))
}

func TestLeaveDetachesConnection(t *testing.T) {
	srv := newTestServer(t, nil)
	code := srv.createRoom(t, `{"questionSet":"demo"}`)

	host := srv.dial(t, "player_id=host")
	joinRoom(t, host, code, "Host")
	guest := srv.dial(t, "player_id=guest")
	joinRoom(t, guest, code, "Guest")

	send(t, guest, InboundRoomLeave, struct{}{})
	ev, _ := expect(t, host, events.TypePlayerDisconnected)
	assert.True(t, decode[events.PlayerDisconnectedPayload](t, ev).Left)

	send(t, guest, InboundGameStart, struct{}{})
	ev, _ = expect(t, guest, events.TypeError)
	assert.Equal(t, ErrNotInRoom.Error(), decode[events.ErrorPayload](t, ev).Message)
}

func TestRoomClosedReachesClients(t *testing.T) {
	srv := newTestServer(t, nil)
	code := srv.createRoom(t, `{"questionSet":"demo"}`)

	host := srv.dial(t, "player_id=host")
	joinRoom(t, host, code, "Host")

	require.NoError(t, srv.rooms.Delete(code))
	ev, _ := expect(t, host, events.TypeRoomClosed)
	assert.Equal(t, events.CloseReasonDeleted, decode[events.RoomClosedPayload](t, ev).Reason)

	send(t, host, InboundGameStart, struct{}{})
	ev, _ = expect(t, host, events.TypeError)
	assert.Equal(t, ErrNotInRoom.Error(), decode[events.ErrorPayload](t, ev).Message)
}

func TestInboundRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) {
		cfg.Connection.MessageRate = 0.001
		cfg.Connection.MessageBurst = 1
	})
	conn := srv.dial(t, "player_id=p1")

	send(t, conn, InboundGameStart, struct{}{})
	ev, _ := expect(t, conn, events.TypeError)
	assert.Equal(t, ErrNotInRoom.Error(), decode[events.ErrorPayload](t, ev).Message)

	send(t, conn, InboundGameStart, struct{}{})
	ev, _ = expect(t, conn, events.TypeError)
	assert.Equal(t, ErrRateLimited.Error(), decode[events.ErrorPayload](t, ev).Message)
}

func TestWebSocketRequiresTokenWhenConfigured(t *testing.T) {
	srv := newTestServer(t, func(cfg *Config) { cfg.JWTSecret = "s3cret" })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tokenResp, err := http.Post(srv.URL+"/api/tokens", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer tokenResp.Body.Close()
	require.Equal(t, http.StatusOK, tokenResp.StatusCode)
	var issued TokenResponse
	require.NoError(t, json.NewDecoder(tokenResp.Body).Decode(&issued))

	code := srv.createRoom(t, `{"questionSet":"demo"}`)
	conn := srv.dial(t, "token="+issued.Token)
	joined := joinRoom(t, conn, code, "Ana")
	assert.Equal(t, issued.PlayerID, joined.Player.ID)
}

func TestWebSocketUnknownRoomParam(t *testing.T) {
	srv := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?player_id=p1&room=NOPE22"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
