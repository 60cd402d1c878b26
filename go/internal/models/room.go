package models

import (
	"errors"
	"fmt"
	"time"
)

// RoomStatus defines the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusWaiting        RoomStatus = "WAITING"
	RoomStatusCountdown      RoomStatus = "COUNTDOWN"
	RoomStatusInProgress     RoomStatus = "IN_PROGRESS"
	RoomStatusPaused         RoomStatus = "PAUSED"
	RoomStatusShowingResults RoomStatus = "SHOWING_RESULTS"
	RoomStatusFinished       RoomStatus = "FINISHED"
)

// AnswerMatching selects how a submitted answer is compared with the correct one.
type AnswerMatching string

const (
	AnswerMatchingExact      AnswerMatching = "exact"
	AnswerMatchingNormalized AnswerMatching = "normalized"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid room settings")

// Settings holds the per-room configuration fixed at creation time.
type Settings struct {
	MaxPlayers       int           `json:"maxPlayers" yaml:"max_players"`
	CountdownSeconds int           `json:"countdownSeconds" yaml:"countdown_seconds"`
	ResultsDelay     time.Duration `json:"resultsDelay" yaml:"results_delay"`

	// GracePeriod is how long a room with no connected players survives.
	// Zero disables the reaper; such rooms only go away once finished or
	// deleted.
	GracePeriod time.Duration `json:"gracePeriod" yaml:"grace_period"`

	// FinishedTTL is how long a finished room stays readable. Zero removes it
	// as soon as the game ends.
	FinishedTTL time.Duration `json:"finishedTtl" yaml:"finished_ttl"`

	HostTransfer   bool           `json:"hostTransfer" yaml:"host_transfer"`
	PauseCredit    bool           `json:"pauseCredit" yaml:"pause_credit"`
	AnswerMatching AnswerMatching `json:"answerMatching" yaml:"answer_matching"`
	PowerUpCharges int            `json:"powerUpCharges" yaml:"power_up_charges"`

	// BonusChance is the probability that a question is drawn as a bonus
	// question. Zero disables bonus questions.
	BonusChance     float64 `json:"bonusChance" yaml:"bonus_chance"`
	BonusMultiplier int     `json:"bonusMultiplier" yaml:"bonus_multiplier"`

	// Seed seeds the room's random source; zero derives one from the room code.
	Seed int64 `json:"seed,omitempty" yaml:"seed"`
}

// DefaultSettings returns the settings used when a room is created without overrides.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:       50,
		CountdownSeconds: 3,
		ResultsDelay:     5 * time.Second,
		GracePeriod:      60 * time.Second,
		FinishedTTL:      300 * time.Second,
		HostTransfer:     true,
		PauseCredit:      false,
		AnswerMatching:   AnswerMatchingExact,
		PowerUpCharges:   1,
		BonusChance:      0,
		BonusMultiplier:  2,
	}
}

// Validate checks that the settings describe a playable room.
func (s Settings) Validate() error {
	switch {
	case s.MaxPlayers < 1:
		return fmt.Errorf("%w: max players must be at least 1", ErrInvalidSettings)
	case s.CountdownSeconds < 0:
		return fmt.Errorf("%w: countdown must not be negative", ErrInvalidSettings)
	case s.ResultsDelay < 0 || s.GracePeriod < 0 || s.FinishedTTL < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidSettings)
	case s.AnswerMatching != AnswerMatchingExact && s.AnswerMatching != AnswerMatchingNormalized:
		return fmt.Errorf("%w: unknown answer matching %q", ErrInvalidSettings, s.AnswerMatching)
	case s.PowerUpCharges < 0:
		return fmt.Errorf("%w: power-up charges must not be negative", ErrInvalidSettings)
	case s.BonusChance < 0 || s.BonusChance > 1:
		return fmt.Errorf("%w: bonus chance must be within [0, 1]", ErrInvalidSettings)
	case s.BonusChance > 0 && s.BonusMultiplier < 1:
		return fmt.Errorf("%w: bonus multiplier must be at least 1", ErrInvalidSettings)
	}
	return nil
}
