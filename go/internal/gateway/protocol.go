package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// InboundType names a client → server event.
type InboundType string

const (
	InboundRoomJoin     InboundType = "room:join"
	InboundRoomLeave    InboundType = "room:leave"
	InboundGameStart    InboundType = "game:start"
	InboundGamePause    InboundType = "game:pause"
	InboundGameResume   InboundType = "game:resume"
	InboundAnswerSubmit InboundType = "answer:submit"
	InboundPowerUpUse   InboundType = "powerup:use"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrNotInRoom        = errors.New("not in a room")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// InboundMessage is one client frame: {"event": "<name>", "data": {...}}.
type InboundMessage struct {
	Event InboundType     `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	Avatar     string `json:"avatar,omitempty"`
}

// AnswerRequest carries the answer as raw JSON so clients may send a string,
// a number or a boolean.
type AnswerRequest struct {
	QuestionID   string          `json:"questionId"`
	Answer       json.RawMessage `json:"answer"`
	ResponseTime float64         `json:"responseTime"`
}

type PowerUpRequest struct {
	Type string `json:"type"`
}

// ParseInbound decodes a frame and checks the event name.
func ParseInbound(raw []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Event {
	case InboundRoomJoin, InboundRoomLeave, InboundGameStart, InboundGamePause,
		InboundGameResume, InboundAnswerSubmit, InboundPowerUpUse:
		return msg, nil
	case "":
		return InboundMessage{}, fmt.Errorf("%w: missing event name", ErrMalformedMessage)
	default:
		return InboundMessage{}, fmt.Errorf("%w: %s", ErrUnknownEvent, msg.Event)
	}
}

// decodeData unmarshals the data field of msg. A missing data field yields
// the zero value.
func decodeData[T any](msg InboundMessage) (T, error) {
	var v T
	if len(msg.Data) == 0 || bytes.Equal(bytes.TrimSpace(msg.Data), []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Event, err)
	}
	return v, nil
}

// AnswerText renders a submitted answer as the string compared against the
// correct answer. JSON strings are unquoted; other values keep their literal
// text.
func (a AnswerRequest) AnswerText() (string, error) {
	raw := bytes.TrimSpace(a.Answer)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: answer is required", ErrMalformedMessage)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return s, nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", fmt.Errorf("%w: answer must be a scalar", ErrMalformedMessage)
	}
	return strings.TrimSpace(string(raw)), nil
}
