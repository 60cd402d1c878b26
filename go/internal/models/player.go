package models

import "time"

// PowerUpType names a per-player power-up.
type PowerUpType string

const (
	PowerUpFiftyFifty PowerUpType = "fifty_fifty"
	PowerUpHint       PowerUpType = "hint"
	PowerUpTimeFreeze PowerUpType = "time_freeze"
)

// ParsePowerUpType validates a power-up name received from a client.
func ParsePowerUpType(s string) (PowerUpType, bool) {
	switch t := PowerUpType(s); t {
	case PowerUpFiftyFifty, PowerUpHint, PowerUpTimeFreeze:
		return t, true
	}
	return "", false
}

// PowerUps holds the remaining charges of every power-up type.
type PowerUps struct {
	FiftyFifty int `json:"fiftyFifty"`
	Hint       int `json:"hint"`
	TimeFreeze int `json:"timeFreeze"`
}

// NewPowerUps gives every power-up type the same number of charges.
func NewPowerUps(charges int) PowerUps {
	return PowerUps{FiftyFifty: charges, Hint: charges, TimeFreeze: charges}
}

func (p *PowerUps) counter(t PowerUpType) *int {
	switch t {
	case PowerUpFiftyFifty:
		return &p.FiftyFifty
	case PowerUpHint:
		return &p.Hint
	case PowerUpTimeFreeze:
		return &p.TimeFreeze
	}
	return nil
}

// Use spends one charge. It reports false when no charge is left.
func (p *PowerUps) Use(t PowerUpType) bool {
	c := p.counter(t)
	if c == nil || *c <= 0 {
		return false
	}
	*c--
	return true
}

// Remaining returns the charges left for t.
func (p PowerUps) Remaining(t PowerUpType) int {
	if c := p.counter(t); c != nil {
		return *c
	}
	return 0
}

// Player is one participant of a room.
type Player struct {
	ID           string    `json:"id"`
	Nickname     string    `json:"nickname"`
	Avatar       string    `json:"avatar,omitempty"`
	Score        int       `json:"score"`
	Streak       int       `json:"streak"`
	MaxStreak    int       `json:"maxStreak"`
	CorrectCount int       `json:"correctCount"`
	WrongCount   int       `json:"wrongCount"`
	IsHost       bool      `json:"isHost"`
	IsConnected  bool      `json:"isConnected"`
	IsEliminated bool      `json:"isEliminated"`
	PowerUps     PowerUps  `json:"powerUps"`
	JoinedAt     time.Time `json:"joinedAt"`

	// JoinOrder is the position in which the player first joined the room.
	JoinOrder int `json:"-"`
}

// Active reports whether the player is expected to answer the current question.
func (p Player) Active() bool {
	return p.IsConnected && !p.IsEliminated
}
