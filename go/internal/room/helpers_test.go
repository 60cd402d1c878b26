package room

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

const waitFor = 2 * time.Second

// collector records every published envelope.
type collector struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (c *collector) Publish(env events.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
}

// broadcasts returns the broadcast events of type t in publish order.
func (c *collector) broadcasts(t events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, env := range c.envs {
		if env.Broadcast() && env.Event.Type == t {
			out = append(out, env.Event)
		}
	}
	return out
}

// private returns the events of type t addressed to playerID.
func (c *collector) private(playerID string, t events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, env := range c.envs {
		if env.PlayerID == playerID && env.Event.Type == t {
			out = append(out, env.Event)
		}
	}
	return out
}

// types returns the type of every broadcast in publish order.
func (c *collector) types() []events.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Type
	for _, env := range c.envs {
		if env.Broadcast() {
			out = append(out, env.Event.Type)
		}
	}
	return out
}

// waitBroadcast blocks until at least n broadcasts of type t were published.
func (c *collector) waitBroadcast(t *testing.T, typ events.Type, n int) []events.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.broadcasts(typ)) >= n }, waitFor, time.Millisecond,
		"waiting for %d %s broadcasts", n, typ)
	return c.broadcasts(typ)
}

func testQuestions() []models.Question {
	return []models.Question{
		{
			ID:          "q1",
			Type:        models.QuestionTypeMultipleChoice,
			Content:     "What is the capital of France?",
			Options:     []string{"Paris", "London", "Berlin", "Madrid"},
			Answer:      "Paris",
			TimeLimit:   30,
			Points:      100,
			Explanation: "Paris has been the capital since 987.",
			Hint:        "It is home to the Eiffel Tower.",
		},
		{
			ID:        "q2",
			Type:      models.QuestionTypeTrueFalse,
			Content:   "The Pacific is the largest ocean.",
			Options:   []string{"true", "false"},
			Answer:    "true",
			TimeLimit: 30,
			Points:    100,
		},
		{
			ID:        "q3",
			Type:      models.QuestionTypeText,
			Content:   "Which planet is known as the red planet?",
			Answer:    "Mars",
			TimeLimit: 30,
			Points:    100,
		},
	}
}

func testSettings() models.Settings {
	s := models.DefaultSettings()
	s.CountdownSeconds = 0
	return s
}

type fixture struct {
	room   *Room
	clock  *clockwork.FakeClock
	events *collector

	mu       sync.Mutex
	finished []models.GameResults
	closed   []string
}

func newFixture(t *testing.T, settings models.Settings, questions ...models.Question) *fixture {
	t.Helper()
	if len(questions) == 0 {
		questions = testQuestions()
	}

	f := &fixture{clock: clockwork.NewFakeClock(), events: &collector{}}
	r, err := New("TEST01", questions, settings, Options{
		Clock:     f.clock,
		Publisher: f.events,
		OnFinished: func(res models.GameResults) {
			f.mu.Lock()
			f.finished = append(f.finished, res)
			f.mu.Unlock()
		},
		OnClose: func(code string) {
			f.mu.Lock()
			f.closed = append(f.closed, code)
			f.mu.Unlock()
		},
	})
	require.NoError(t, err)
	f.room = r
	t.Cleanup(func() { _ = r.Close(events.CloseReasonShutdown) })
	return f
}

func (f *fixture) join(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := f.room.Join(id, "nick-"+id, "")
		require.NoError(t, err)
	}
}

func (f *fixture) answer(t *testing.T, playerID, questionID, value string, rt float64) events.AnswerResult {
	t.Helper()
	res, err := f.room.SubmitAnswer(playerID, Submission{QuestionID: questionID, Answer: value, ResponseTime: rt})
	require.NoError(t, err)
	return res
}

// player returns a copy of one roster entry.
func (f *fixture) player(t *testing.T, id string) models.Player {
	t.Helper()
	s, err := f.room.Snapshot()
	require.NoError(t, err)
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("player %s not in room", id)
	return models.Player{}
}

func (f *fixture) status(t *testing.T) models.RoomStatus {
	t.Helper()
	st, err := f.room.Status()
	require.NoError(t, err)
	return st
}

func (f *fixture) isClosed() bool {
	select {
	case <-f.room.Done():
		return true
	default:
		return false
	}
}
