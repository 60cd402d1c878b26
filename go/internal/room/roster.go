package room

import (
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

const maxNicknameLength = 32

// Join adds a player to the room. A player id the room already knows takes
// the reconnect path instead: state is restored and the capacity and status
// checks do not apply.
func (r *Room) Join(playerID, nickname, avatar string) (models.Player, error) {
	var joined models.Player
	err := r.exec(func() error {
		if p, ok := r.players[playerID]; ok {
			r.reconnect(p)
			r.disarmReaper()
			joined = *p
			return nil
		}

		p, err := r.join(playerID, nickname, avatar)
		if err != nil {
			r.logger.Debug().Err(err).Str("player_id", playerID).Msg("join rejected")
			return err
		}
		r.disarmReaper()
		joined = *p
		return nil
	})
	return joined, err
}

func (r *Room) join(playerID, nickname, avatar string) (*models.Player, error) {
	nickname = strings.TrimSpace(nickname)
	switch {
	case playerID == "":
		return nil, ErrUnknownPlayer
	case nickname == "":
		return nil, ErrInvalidNickname
	case r.status != models.RoomStatusWaiting:
		return nil, ErrGameStarted
	case len(r.players) >= r.settings.MaxPlayers:
		return nil, ErrRoomFull
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		nickname = string([]rune(nickname)[:maxNicknameLength])
	}

	r.joined++
	p := &models.Player{
		ID:          playerID,
		Nickname:    nickname,
		Avatar:      avatar,
		IsConnected: true,
		PowerUps:    models.NewPowerUps(r.settings.PowerUpCharges),
		JoinedAt:    r.clock.Now(),
		JoinOrder:   r.joined,
	}
	if r.hostID == "" {
		p.IsHost = true
		r.hostID = playerID
	}
	r.players[playerID] = p

	r.emitTo(playerID, events.TypeRoomJoined, r.joinedPayload(p))
	r.emit(events.TypePlayerJoined, events.PlayerJoinedPayload{
		Player:      *p,
		PlayerCount: len(r.players),
	})

	r.logger.Info().
		Str("player_id", playerID).
		Str("nickname", nickname).
		Bool("host", p.IsHost).
		Int("players", len(r.players)).
		Msg("player joined")
	return p, nil
}

func (r *Room) reconnect(p *models.Player) {
	if !p.IsConnected {
		p.IsConnected = true
		r.emit(events.TypePlayerReconnected, events.PlayerReconnectedPayload{
			PlayerID: p.ID,
			Nickname: p.Nickname,
		})
		r.logger.Info().Str("player_id", p.ID).Msg("player reconnected")
		r.ensureHost()
	}
	// A fresh connection always gets the current session.
	r.emitTo(p.ID, events.TypeRoomJoined, r.joinedPayload(p))
}

// Leave is a voluntary disconnect. The player's state is kept so they can
// rejoin with the same id.
func (r *Room) Leave(playerID string) error {
	return r.exec(func() error {
		return r.disconnect(playerID, true)
	})
}

// Disconnect records that the player's transport has gone away.
func (r *Room) Disconnect(playerID string) error {
	return r.exec(func() error {
		return r.disconnect(playerID, false)
	})
}

func (r *Room) disconnect(playerID string, left bool) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if !p.IsConnected {
		return nil
	}
	p.IsConnected = false

	r.emit(events.TypePlayerDisconnected, events.PlayerDisconnectedPayload{
		PlayerID: p.ID,
		Nickname: p.Nickname,
		Left:     left,
	})
	r.logger.Info().
		Str("player_id", playerID).
		Bool("left", left).
		Int("connected", r.connectedCount()).
		Msg("player disconnected")

	r.ensureHost()

	if r.connectedCount() == 0 {
		r.armReaper()
		return nil
	}

	r.checkAllAnswered()
	return nil
}

// ensureHost hands the host role to the earliest-joined connected player when
// the current host is not connected.
func (r *Room) ensureHost() {
	if !r.settings.HostTransfer {
		return
	}
	if host, ok := r.players[r.hostID]; ok && host.IsConnected {
		return
	}

	var next *models.Player
	for _, p := range r.players {
		if !p.IsConnected {
			continue
		}
		if next == nil || p.JoinOrder < next.JoinOrder {
			next = p
		}
	}
	if next == nil {
		return
	}

	if old, ok := r.players[r.hostID]; ok {
		old.IsHost = false
	}
	next.IsHost = true
	r.hostID = next.ID

	r.emit(events.TypeHostChanged, events.HostChangedPayload{PlayerID: next.ID, Nickname: next.Nickname})
	r.logger.Info().Str("player_id", next.ID).Msg("host transferred")
}

// armReaper schedules the room's removal after the grace period. A zero grace
// period disables the reaper.
func (r *Room) armReaper() {
	if r.settings.GracePeriod <= 0 {
		return
	}
	r.sched.After(slotReaper, r.settings.GracePeriod)
	r.logger.Debug().Dur("grace_period", r.settings.GracePeriod).Msg("reaper armed")
}

// disarmReaper cancels a pending reaper once someone is connected again.
func (r *Room) disarmReaper() {
	if !r.sched.Active(slotReaper) {
		return
	}
	r.sched.Cancel(slotReaper)
	r.logger.Debug().Msg("reaper disarmed")
}

// reap closes the room if nobody came back during the grace period.
func (r *Room) reap() {
	if n := r.connectedCount(); n > 0 {
		r.logger.Debug().Int("connected", n).Msg("reaper found connected players, keeping room")
		return
	}
	r.shutdown(events.CloseReasonAbandoned)
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// activeCount is the number of players expected to answer.
func (r *Room) activeCount() int {
	n := 0
	for _, p := range r.players {
		if p.Active() {
			n++
		}
	}
	return n
}

func (r *Room) joinedPayload(p *models.Player) events.RoomJoinedPayload {
	session := r.session()
	return events.RoomJoinedPayload{
		Session: session,
		Player:  *p,
		Players: session.Players,
	}
}
