package room

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

// requireHost rejects callers that are not the room's host.
func (r *Room) requireHost(playerID string) error {
	if _, ok := r.players[playerID]; !ok {
		return ErrUnknownPlayer
	}
	if playerID != r.hostID {
		return ErrNotHost
	}
	return nil
}

// Start begins the countdown. Only the host may start; a start arriving after
// the game has begun is ignored.
func (r *Room) Start(playerID string) error {
	return r.exec(func() error {
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		if r.status != models.RoomStatusWaiting {
			r.logger.Debug().Str("status", string(r.status)).Msg("ignoring stale start")
			return nil
		}

		r.gameID = uuid.NewString()
		r.logger.Info().
			Str("game_id", r.gameID).
			Int("players", len(r.players)).
			Msg("game starting")

		if r.settings.CountdownSeconds <= 0 {
			r.beginGame()
			return nil
		}

		r.status = models.RoomStatusCountdown
		r.countdown = r.settings.CountdownSeconds
		r.emit(events.TypeGameCountdown, events.CountdownPayload{Seconds: r.countdown})
		r.sched.Every(slotCountdown, time.Second)
		return nil
	})
}

func (r *Room) countdownTick() {
	if r.status != models.RoomStatusCountdown {
		return
	}
	r.countdown--
	if r.countdown > 0 {
		r.emit(events.TypeGameCountdown, events.CountdownPayload{Seconds: r.countdown})
		return
	}
	r.sched.Cancel(slotCountdown)
	r.beginGame()
}

func (r *Room) beginGame() {
	r.startedAt = r.clock.Now()
	r.status = models.RoomStatusInProgress
	r.emit(events.TypeGameStarted, events.GameStartedPayload{TotalQuestions: len(r.questions)})
	r.beginQuestion(0)
}

// beginQuestion enters IN_PROGRESS for question i. This is the only place the
// ledger is cleared.
func (r *Room) beginQuestion(i int) {
	q := r.questions[i]

	r.status = models.RoomStatusInProgress
	r.currentIndex = i
	r.ledger = make(map[string]answer, len(r.players))
	r.multiplier = 1
	if r.settings.BonusChance > 0 && r.rng.Float64() < r.settings.BonusChance {
		r.multiplier = r.settings.BonusMultiplier
	}

	d := q.Duration()
	r.deadline = r.clock.Now().Add(d)
	r.sched.After(slotQuestion, d)
	r.sched.Every(slotTick, tickInterval)

	if r.multiplier > 1 {
		r.emit(events.TypeQuestionBonus, events.QuestionBonusPayload{QuestionID: q.ID, Multiplier: r.multiplier})
	}
	r.emit(events.TypeQuestionNew, events.QuestionNewPayload{
		Question:  q.Redacted(),
		Index:     i,
		Total:     len(r.questions),
		TimeLimit: q.TimeLimit,
	})

	r.logger.Debug().
		Int("index", i).
		Str("question_id", q.ID).
		Int("multiplier", r.multiplier).
		Time("deadline", r.deadline).
		Msg("question started")
}

func (r *Room) timeUpdate() {
	if r.status != models.RoomStatusInProgress {
		return
	}
	r.emit(events.TypeQuestionTimeUpdate, events.TimeUpdatePayload{Remaining: r.remainingSeconds()})
}

// remaining is the time left on the current question.
func (r *Room) remaining() time.Duration {
	switch r.status {
	case models.RoomStatusInProgress:
		left, _ := r.sched.Remaining(slotQuestion)
		return left
	case models.RoomStatusPaused:
		// A paused slot reports the time it had left when paused.
		if r.settings.PauseCredit {
			left, _ := r.sched.Remaining(slotQuestion)
			return left
		}
		return max(r.deadline.Sub(r.clock.Now()), 0)
	}
	return 0
}

func (r *Room) remainingSeconds() int {
	return int(math.Ceil(r.remaining().Seconds()))
}

// Pause freezes the current question. Answers are rejected until Resume.
func (r *Room) Pause(playerID string) error {
	return r.exec(func() error {
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		if r.status != models.RoomStatusInProgress {
			r.logger.Debug().Str("status", string(r.status)).Msg("ignoring pause")
			return nil
		}

		left, _ := r.sched.Pause(slotQuestion)
		r.sched.Cancel(slotTick)
		r.status = models.RoomStatusPaused

		r.emit(events.TypeGamePaused, events.GamePausedPayload{Remaining: r.remainingSeconds()})
		r.logger.Info().Dur("remaining", left).Msg("game paused")
		return nil
	})
}

// Resume continues a paused question. Unless pause credit is enabled the
// original deadline still applies, and a question whose deadline passed
// while paused ends immediately.
func (r *Room) Resume(playerID string) error {
	return r.exec(func() error {
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		if r.status != models.RoomStatusPaused {
			r.logger.Debug().Str("status", string(r.status)).Msg("ignoring resume")
			return nil
		}

		r.status = models.RoomStatusInProgress
		if r.settings.PauseCredit {
			left, _ := r.sched.Resume(slotQuestion)
			r.deadline = r.clock.Now().Add(left)
		} else {
			left := r.deadline.Sub(r.clock.Now())
			if left <= 0 {
				r.sched.Cancel(slotQuestion)
				r.emit(events.TypeGameResumed, events.GameResumedPayload{Remaining: 0})
				r.logger.Info().Msg("game resumed after deadline")
				r.endQuestion(events.EndReasonTimeout)
				return nil
			}
			r.sched.After(slotQuestion, left)
		}
		r.sched.Every(slotTick, tickInterval)

		r.emit(events.TypeGameResumed, events.GameResumedPayload{Remaining: r.remainingSeconds()})
		r.logger.Info().Time("deadline", r.deadline).Msg("game resumed")
		return nil
	})
}

// endQuestion freezes the ledger, applies misses, publishes the summary and
// leaderboard, and schedules the results delay.
func (r *Room) endQuestion(reason string) {
	if r.status != models.RoomStatusInProgress {
		return
	}
	r.sched.Cancel(slotQuestion)
	r.sched.Cancel(slotTick)

	q := r.questions[r.currentIndex]

	// Not answering counts as a wrong answer.
	for id, p := range r.players {
		if p.IsEliminated {
			continue
		}
		if _, answered := r.ledger[id]; !answered {
			p.Streak = 0
			p.WrongCount++
		}
	}

	r.status = models.RoomStatusShowingResults
	r.emit(events.TypeQuestionEnded, events.QuestionEndedPayload{
		QuestionID:    q.ID,
		CorrectAnswer: q.Answer,
		Explanation:   q.Explanation,
		Stats:         r.questionStats(),
		Reason:        reason,
	})
	r.emit(events.TypeLeaderboardUpdate, events.LeaderboardPayload{Players: r.leaderboard()})
	r.sched.After(slotResults, r.settings.ResultsDelay)

	r.logger.Debug().
		Int("index", r.currentIndex).
		Str("reason", reason).
		Int("answers", len(r.ledger)).
		Msg("question ended")
}

// advance leaves SHOWING_RESULTS. The cursor only moves here.
func (r *Room) advance() {
	if r.status != models.RoomStatusShowingResults {
		return
	}
	if next := r.currentIndex + 1; next < len(r.questions) {
		r.beginQuestion(next)
		return
	}
	r.finish()
}

func (r *Room) finish() {
	r.status = models.RoomStatusFinished
	r.finishedAt = r.clock.Now()

	results := r.gameResults()
	r.results = &results

	r.emit(events.TypeGameFinished, events.GameFinishedPayload{
		Results:  results.Results,
		Rankings: results.Rankings(),
	})
	r.sched.After(slotCleanup, r.settings.FinishedTTL)

	r.logger.Info().
		Str("game_id", r.gameID).
		Int("players", len(results.Results)).
		Dur("duration", r.finishedAt.Sub(r.startedAt)).
		Msg("game finished")

	if r.onFinished != nil {
		r.onFinished(results)
	}
}
