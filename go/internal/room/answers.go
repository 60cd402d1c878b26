package room

import (
	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/scoring"
)

// Submission is an answer as received from a client.
type Submission struct {
	QuestionID   string
	Answer       string
	ResponseTime float64 // seconds
}

// SubmitAnswer scores a player's answer to the current question. Each player
// is scored at most once per question; later submissions are rejected.
func (r *Room) SubmitAnswer(playerID string, sub Submission) (events.AnswerResult, error) {
	var result events.AnswerResult
	err := r.exec(func() error {
		res, err := r.submit(playerID, sub)
		if err != nil {
			r.logger.Debug().
				Err(err).
				Str("player_id", playerID).
				Str("question_id", sub.QuestionID).
				Msg("answer rejected")
			return err
		}
		result = res
		return nil
	})
	return result, err
}

func (r *Room) submit(playerID string, sub Submission) (events.AnswerResult, error) {
	if r.status != models.RoomStatusInProgress {
		return events.AnswerResult{}, ErrNotInProgress
	}
	q := r.questions[r.currentIndex]
	if sub.QuestionID != q.ID {
		return events.AnswerResult{}, ErrWrongQuestion
	}
	p, ok := r.players[playerID]
	if !ok {
		return events.AnswerResult{}, ErrUnknownPlayer
	}
	if p.IsEliminated {
		return events.AnswerResult{}, ErrEliminated
	}
	if _, dup := r.ledger[playerID]; dup {
		return events.AnswerResult{}, ErrDuplicateAnswer
	}

	limit := float64(q.TimeLimit)
	rt := scoring.ClampResponseTime(limit, sub.ResponseTime)
	correct := r.matcher.Match(sub.Answer, q.Answer)
	r.ledger[playerID] = answer{value: sub.Answer, responseTime: rt, correct: correct}

	b := scoring.Score(scoring.Input{
		Points:       q.Points,
		TimeLimit:    limit,
		ResponseTime: rt,
		Streak:       p.Streak,
		Correct:      correct,
		Multiplier:   r.multiplier,
	})

	if correct {
		p.Streak = b.NewStreak
		p.MaxStreak = max(p.MaxStreak, p.Streak)
		p.CorrectCount++
	} else {
		p.Streak = 0
		p.WrongCount++
	}
	p.Score += b.PointsEarned

	result := events.AnswerResult{
		PlayerID:     playerID,
		QuestionID:   q.ID,
		Answer:       sub.Answer,
		IsCorrect:    correct,
		ResponseTime: rt,
		PointsEarned: b.PointsEarned,
		BonusPoints:  b.BonusPoints(q.Points),
		TimeBonus:    b.TimeBonus,
		StreakBonus:  b.StreakBonus,
		Multiplier:   r.multiplier,
		NewScore:     p.Score,
		NewStreak:    p.Streak,
	}

	r.emitTo(playerID, events.TypeAnswerResult, result)
	r.emit(events.TypePlayerScored, events.PlayerScoredPayload{
		PlayerID: playerID,
		Points:   b.PointsEarned,
		Streak:   p.Streak,
		NewScore: p.Score,
	})

	r.checkAllAnswered()
	return result, nil
}

// checkAllAnswered ends the question early once every connected, non-eliminated
// player is in the ledger.
func (r *Room) checkAllAnswered() {
	if r.status != models.RoomStatusInProgress {
		return
	}
	active := 0
	for id, p := range r.players {
		if !p.Active() {
			continue
		}
		active++
		if _, ok := r.ledger[id]; !ok {
			return
		}
	}
	if active == 0 {
		return
	}
	r.endQuestion(events.EndReasonAllAnswered)
}

func (r *Room) questionStats() events.QuestionStats {
	stats := events.QuestionStats{AnswerDistribution: make(map[string]int, len(r.ledger))}
	var total float64
	for _, a := range r.ledger {
		stats.AnswerDistribution[a.value]++
		stats.TotalAnswers++
		if a.correct {
			stats.CorrectCount++
		}
		total += a.responseTime
	}
	if stats.TotalAnswers > 0 {
		stats.AvgResponseTime = total / float64(stats.TotalAnswers)
	}
	return stats
}
