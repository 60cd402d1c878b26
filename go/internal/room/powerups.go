package room

import (
	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

// UsePowerUp spends one charge of t. Power-ups never change scoring: hint and
// fifty-fifty only send the player extra information about the question.
func (r *Room) UsePowerUp(playerID string, t models.PowerUpType) (int, error) {
	var remaining int
	err := r.exec(func() error {
		if r.status != models.RoomStatusInProgress {
			return ErrNotInProgress
		}
		p, ok := r.players[playerID]
		if !ok {
			return ErrUnknownPlayer
		}
		if p.IsEliminated {
			return ErrEliminated
		}
		if _, ok := models.ParsePowerUpType(string(t)); !ok {
			return ErrUnknownPowerUp
		}
		if !p.PowerUps.Use(t) {
			return ErrNoCharges
		}
		remaining = p.PowerUps.Remaining(t)

		r.emit(events.TypePowerUpActivated, events.PowerUpActivatedPayload{
			Type:      t,
			PlayerID:  playerID,
			Remaining: remaining,
		})

		q := r.questions[r.currentIndex]
		switch t {
		case models.PowerUpHint:
			if q.Hint != "" {
				r.emitTo(playerID, events.TypePowerUpHint, events.PowerUpHintPayload{QuestionID: q.ID, Hint: q.Hint})
			}
		case models.PowerUpFiftyFifty:
			if removed := r.fiftyFifty(q); len(removed) > 0 {
				r.emitTo(playerID, events.TypePowerUpRemoved, events.PowerUpRemovedPayload{QuestionID: q.ID, Removed: removed})
			}
		}

		r.logger.Debug().
			Str("player_id", playerID).
			Str("power_up", string(t)).
			Int("remaining", remaining).
			Msg("power-up used")
		return nil
	})
	return remaining, err
}

// fiftyFifty picks half of the wrong options, rounded down, using the room's
// random source.
func (r *Room) fiftyFifty(q models.Question) []string {
	var wrong []string
	for _, opt := range q.Options {
		if !r.matcher.Match(opt, q.Answer) {
			wrong = append(wrong, opt)
		}
	}
	n := len(wrong) / 2
	if n == 0 {
		return nil
	}
	r.rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
	return wrong[:n]
}
