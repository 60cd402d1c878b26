// Package results hands finished games to persistence sinks. Sinks run off
// the room goroutine and their failures never reach the game.
package results

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/models"
)

// Recorder persists the results of one finished game.
type Recorder interface {
	Record(ctx context.Context, res models.GameResults) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, res models.GameResults) error

func (f RecorderFunc) Record(ctx context.Context, res models.GameResults) error { return f(ctx, res) }

// Multi records to every sink and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, res models.GameResults) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogRecorder writes a summary line per game. It is the sink used when no
// database or broker is configured.
type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, res models.GameResults) error {
	ev := log.Info().
		Str("game_id", res.GameID).
		Str("room_code", res.RoomCode).
		Int("questions", res.TotalQuestions).
		Int("players", len(res.Results)).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt))
	if len(res.Results) > 0 {
		ev = ev.Str("winner", res.Results[0].Nickname).Int("winning_score", res.Results[0].Score)
	}
	ev.Msg("game results")
	return nil
}
