package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/registry"
	"github.com/mcdev12/quizrush/go/internal/room"
)

// RoomLookup finds running rooms by code.
type RoomLookup interface {
	Get(code string) (*room.Room, error)
}

// rejections are reported to the client verbatim. Anything else is logged and
// reported as an internal error.
var rejections = []error{
	registry.ErrRoomNotFound,
	room.ErrRoomFull,
	room.ErrGameStarted,
	room.ErrNotHost,
	room.ErrDuplicateAnswer,
	room.ErrNotInProgress,
	room.ErrWrongQuestion,
	room.ErrUnknownPlayer,
	room.ErrEliminated,
	room.ErrNoCharges,
	room.ErrUnknownPowerUp,
	room.ErrInvalidNickname,
	room.ErrRoomClosed,
	ErrMalformedMessage,
	ErrUnknownEvent,
	ErrNotInRoom,
}

func isRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Dispatcher turns inbound frames into room commands. Outbound room events
// reach clients through the ConnectionManager's Publish; the dispatcher only
// writes error frames itself.
type Dispatcher struct {
	rooms RoomLookup
	cm    *ConnectionManager
}

// NewDispatcher creates a dispatcher and installs it as cm's handler.
func NewDispatcher(rooms RoomLookup, cm *ConnectionManager) *Dispatcher {
	d := &Dispatcher{rooms: rooms, cm: cm}
	cm.SetHandler(d)
	return d
}

// HandleMessage implements MessageHandler.
func (d *Dispatcher) HandleMessage(c *Connection, raw []byte) {
	msg, err := ParseInbound(raw)
	if err != nil {
		d.reject(c, "", err)
		return
	}

	logger := log.With().
		Str("connection_id", c.ID).
		Str("player_id", c.PlayerID).
		Str("event", string(msg.Event)).
		Logger()
	logger.Debug().Msg("inbound message")

	if err := d.dispatch(c, msg); err != nil {
		d.reject(c, msg.Event, err)
	}
}

func (d *Dispatcher) dispatch(c *Connection, msg InboundMessage) error {
	switch msg.Event {
	case InboundRoomJoin:
		req, err := decodeData[JoinRequest](msg)
		if err != nil {
			return err
		}
		return d.join(c, req)

	case InboundRoomLeave:
		return d.leave(c)

	case InboundGameStart:
		return d.withRoom(c, func(rm *room.Room) error { return rm.Start(c.PlayerID) })

	case InboundGamePause:
		return d.withRoom(c, func(rm *room.Room) error { return rm.Pause(c.PlayerID) })

	case InboundGameResume:
		return d.withRoom(c, func(rm *room.Room) error { return rm.Resume(c.PlayerID) })

	case InboundAnswerSubmit:
		req, err := decodeData[AnswerRequest](msg)
		if err != nil {
			return err
		}
		answer, err := req.AnswerText()
		if err != nil {
			return err
		}
		return d.withRoom(c, func(rm *room.Room) error {
			_, err := rm.SubmitAnswer(c.PlayerID, room.Submission{
				QuestionID:   req.QuestionID,
				Answer:       answer,
				ResponseTime: req.ResponseTime,
			})
			return err
		})

	case InboundPowerUpUse:
		req, err := decodeData[PowerUpRequest](msg)
		if err != nil {
			return err
		}
		return d.withRoom(c, func(rm *room.Room) error {
			_, err := rm.UsePowerUp(c.PlayerID, models.PowerUpType(req.Type))
			return err
		})
	}
	return fmt.Errorf("%w: %s", ErrUnknownEvent, msg.Event)
}

// join attaches the connection to the room before joining so the room's
// private room:joined event finds it. The previous room is only left once the
// new room has accepted the player; a rejected join leaves the connection
// where it was.
func (d *Dispatcher) join(c *Connection, req JoinRequest) error {
	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	prev := d.cm.RoomOf(c)
	if code == "" {
		code = prev
	}
	if code == "" {
		return fmt.Errorf("%w: roomCode is required", ErrMalformedMessage)
	}

	rm, err := d.rooms.Get(code)
	if err != nil {
		return err
	}

	d.cm.Attach(c, code)
	if _, err := rm.Join(c.PlayerID, req.PlayerName, req.Avatar); err != nil {
		d.restore(c, prev)
		return err
	}

	if prev != "" && prev != code {
		if err := d.leaveRoom(prev, c.PlayerID); err != nil {
			log.Debug().Err(err).Str("room_code", prev).Msg("leaving previous room")
		}
	}
	return nil
}

// restore puts a connection back in prev after a rejected join, or detaches
// it if prev is gone.
func (d *Dispatcher) restore(c *Connection, prev string) {
	if prev != "" {
		if _, err := d.rooms.Get(prev); err == nil {
			d.cm.Attach(c, prev)
			return
		}
	}
	d.cm.Detach(c)
}

func (d *Dispatcher) leave(c *Connection) error {
	code := d.cm.RoomOf(c)
	if code == "" {
		return ErrNotInRoom
	}
	d.cm.Detach(c)
	return d.leaveRoom(code, c.PlayerID)
}

// leaveRoom marks the player as gone from code unless another of their
// connections is still attached to it.
func (d *Dispatcher) leaveRoom(code, playerID string) error {
	if d.cm.PlayerConnected(code, playerID) {
		return nil
	}
	rm, err := d.rooms.Get(code)
	if err != nil {
		return nil
	}
	if err := rm.Leave(playerID); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		return err
	}
	return nil
}

func (d *Dispatcher) withRoom(c *Connection, fn func(rm *room.Room) error) error {
	code := d.cm.RoomOf(c)
	if code == "" {
		return ErrNotInRoom
	}
	rm, err := d.rooms.Get(code)
	if err != nil {
		return err
	}
	return fn(rm)
}

// HandleDisconnect implements MessageHandler. The player is only marked
// disconnected once their last connection to the room is gone.
func (d *Dispatcher) HandleDisconnect(c *Connection, roomCode string) {
	if roomCode == "" || d.cm.PlayerConnected(roomCode, c.PlayerID) {
		return
	}
	rm, err := d.rooms.Get(roomCode)
	if err != nil {
		return
	}
	if err := rm.Disconnect(c.PlayerID); err != nil {
		log.Debug().
			Err(err).
			Str("room_code", roomCode).
			Str("player_id", c.PlayerID).
			Msg("disconnect ignored")
	}
}

// reject sends an error frame to the originating connection only.
func (d *Dispatcher) reject(c *Connection, event InboundType, err error) {
	message := err.Error()
	if !isRejection(err) {
		log.Error().
			Err(err).
			Str("connection_id", c.ID).
			Str("player_id", c.PlayerID).
			Str("event", string(event)).
			Msg("failed to handle message")
		message = "internal error"
	}
	d.cm.SendTo(c, events.New(d.cm.RoomOf(c), events.TypeError, events.ErrorPayload{Message: message}, time.Now()))
}
