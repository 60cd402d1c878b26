package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/models"
)

const defaultRecordTimeout = 10 * time.Second

// Dispatcher records results asynchronously. Dispatch matches the room's
// OnFinished hook and returns immediately.
type Dispatcher struct {
	recorder Recorder
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(recorder Recorder, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	return &Dispatcher{recorder: recorder, timeout: timeout}
}

// Dispatch records res in the background.
func (d *Dispatcher) Dispatch(res models.GameResults) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.record(ctx, res); err != nil {
			log.Error().
				Err(err).
				Str("game_id", res.GameID).
				Str("room_code", res.RoomCode).
				Msg("failed to record game results")
			return
		}
		log.Debug().Str("game_id", res.GameID).Str("room_code", res.RoomCode).Msg("recorded game results")
	}()
}

func (d *Dispatcher) record(ctx context.Context, res models.GameResults) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recorder panic: %v", p)
		}
	}()
	return d.recorder.Record(ctx, res)
}

// Wait blocks until every dispatched record has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
