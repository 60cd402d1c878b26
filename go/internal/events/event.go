package events

import (
	"time"

	"github.com/google/uuid"
)

// Type is the name of an outbound event as it appears on the wire.
type Type string

const (
	// Sent to one connection only
	TypeRoomJoined     Type = "room:joined"
	TypeError          Type = "error"
	TypeAnswerResult   Type = "answer:result"
	TypePowerUpHint    Type = "powerup:hint"
	TypePowerUpRemoved Type = "powerup:fiftyFifty"

	// Broadcast to the room
	TypePlayerJoined       Type = "player:joined"
	TypePlayerDisconnected Type = "player:disconnected"
	TypePlayerReconnected  Type = "player:reconnected"
	TypeHostChanged        Type = "host:changed"
	TypeGameCountdown      Type = "game:countdown"
	TypeGameStarted        Type = "game:started"
	TypeGamePaused         Type = "game:paused"
	TypeGameResumed        Type = "game:resumed"
	TypeQuestionNew        Type = "question:new"
	TypeQuestionBonus      Type = "question:bonus"
	TypeQuestionTimeUpdate Type = "question:timeUpdate"
	TypeQuestionEnded      Type = "question:ended"
	TypeLeaderboardUpdate  Type = "leaderboard:update"
	TypeGameFinished       Type = "game:finished"
	TypePlayerScored       Type = "player:scored"
	TypePowerUpActivated   Type = "powerup:activated"
	TypeRoomClosed         Type = "room:closed"
)

// Event is one outbound message produced by a room.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"event"`
	RoomCode  string    `json:"roomCode"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// New stamps an event with a fresh ID.
func New(roomCode string, t Type, data any, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		RoomCode:  roomCode,
		Timestamp: at.UTC(),
		Data:      data,
	}
}

// Envelope addresses an event. An empty PlayerID means every connection in
// the room.
type Envelope struct {
	RoomCode string
	PlayerID string
	Event    Event
}

// Broadcast reports whether the envelope goes to the whole room.
func (e Envelope) Broadcast() bool {
	return e.PlayerID == ""
}

// Publisher delivers envelopes. Implementations must not block the caller for
// long: rooms publish from their own goroutine.
type Publisher interface {
	Publish(env Envelope)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(env Envelope)

func (f PublisherFunc) Publish(env Envelope) { f(env) }

// Fanout publishes every envelope to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(env Envelope) {
	for _, p := range f {
		if p != nil {
			p.Publish(env)
		}
	}
}

// Discard drops everything.
var Discard Publisher = PublisherFunc(func(Envelope) {})
