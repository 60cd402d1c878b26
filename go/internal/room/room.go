// Package room runs one live quiz game. Every room is an actor: a single
// goroutine owns the roster, the question cursor and the answer ledger, and
// all commands and timer firings are executed on it one at a time.
package room

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/schedule"
	"github.com/mcdev12/quizrush/go/internal/scoring"
)

// Timer slots
const (
	slotCountdown schedule.Slot = "countdown"
	slotQuestion  schedule.Slot = "question"
	slotTick      schedule.Slot = "tick"
	slotResults   schedule.Slot = "results"
	slotReaper    schedule.Slot = "reaper"
	slotCleanup   schedule.Slot = "cleanup"
)

const tickInterval = time.Second

// Options wires a room to its collaborators. Every field is optional.
type Options struct {
	Clock     schedule.Clock
	Publisher events.Publisher

	// OnFinished is called once, on the room goroutine, when the game reaches
	// FINISHED. It must not block.
	OnFinished func(models.GameResults)

	// OnClose is called after the room goroutine has exited.
	OnClose func(code string)
}

// answer is one ledger entry.
type answer struct {
	value        string
	responseTime float64
	correct      bool
}

type command struct {
	fn    func() error
	reply chan error
}

// Room is a handle to a running room. All methods are safe for concurrent use.
type Room struct {
	code      string
	questions []models.Question
	settings  models.Settings
	createdAt time.Time

	clock      schedule.Clock
	sched      *schedule.Scheduler
	publisher  events.Publisher
	matcher    scoring.Matcher
	rng        *rand.Rand
	onFinished func(models.GameResults)
	onClose    func(string)
	logger     zerolog.Logger

	inbox chan command
	done  chan struct{}

	// Owned by the room goroutine
	status       models.RoomStatus
	players      map[string]*models.Player
	joined       int
	hostID       string
	currentIndex int
	ledger       map[string]answer
	multiplier   int
	deadline     time.Time
	countdown    int
	gameID       string
	startedAt    time.Time
	finishedAt   time.Time
	results      *models.GameResults
	pending      []events.Envelope
	closed       bool
}

// New validates the questions and settings and starts the room goroutine.
func New(code string, questions []models.Question, settings models.Settings, opts Options) (*Room, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	for i, q := range questions {
		if q.TimeLimit <= 0 {
			return nil, fmt.Errorf("%w: question %d (%s) needs a positive time limit", ErrInvalidQuestion, i, q.ID)
		}
		if q.Points < 0 {
			return nil, fmt.Errorf("%w: question %d (%s) has negative points", ErrInvalidQuestion, i, q.ID)
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	matcher, err := scoring.MatcherFor(settings.AnswerMatching)
	if err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Discard
	}

	seed := uint64(settings.Seed)
	if seed == 0 {
		h := fnv.New64a()
		h.Write([]byte(code))
		seed = h.Sum64()
	}

	r := &Room{
		code:       code,
		questions:  append([]models.Question(nil), questions...),
		settings:   settings,
		createdAt:  clock.Now(),
		clock:      clock,
		publisher:  publisher,
		matcher:    matcher,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		onFinished: opts.OnFinished,
		onClose:    opts.OnClose,
		logger:     log.With().Str("room_code", code).Logger(),
		inbox:      make(chan command),
		done:       make(chan struct{}),
		status:     models.RoomStatusWaiting,
		players:    make(map[string]*models.Player),
		ledger:     make(map[string]answer),
		multiplier: 1,
	}
	r.sched = schedule.New(clock, r.post)

	// A room nobody joins is reaped like an abandoned one.
	r.armReaper()

	go r.run()

	r.logger.Info().
		Int("questions", len(questions)).
		Int("max_players", settings.MaxPlayers).
		Msg("room created")
	return r, nil
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	for cmd := range r.inbox {
		err := cmd.fn()
		r.flush()
		if cmd.reply != nil {
			cmd.reply <- err
		}
		if r.closed {
			break
		}
	}

	r.sched.Stop()
	close(r.done)
	r.logger.Info().Msg("room closed")

	if r.onClose != nil {
		r.onClose(r.code)
	}
}

// exec runs fn on the room goroutine and waits for its result. Events emitted
// by fn are published before exec returns.
func (r *Room) exec(fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.inbox <- cmd:
	case <-r.done:
		return ErrRoomClosed
	}
	return <-cmd.reply
}

// post hands a timer firing to the room goroutine.
func (r *Room) post(f schedule.Firing) {
	cmd := command{fn: func() error {
		if r.sched.Accept(f) {
			r.fire(f.Slot)
		}
		return nil
	}}
	select {
	case r.inbox <- cmd:
	case <-r.done:
	}
}

func (r *Room) fire(slot schedule.Slot) {
	switch slot {
	case slotCountdown:
		r.countdownTick()
	case slotQuestion:
		r.endQuestion(events.EndReasonTimeout)
	case slotTick:
		r.timeUpdate()
	case slotResults:
		r.advance()
	case slotReaper:
		r.reap()
	case slotCleanup:
		r.shutdown(events.CloseReasonExpired)
	}
}

// emit queues a broadcast.
func (r *Room) emit(t events.Type, data any) {
	r.pending = append(r.pending, events.Envelope{
		RoomCode: r.code,
		Event:    events.New(r.code, t, data, r.clock.Now()),
	})
}

// emitTo queues an event for one player.
func (r *Room) emitTo(playerID string, t events.Type, data any) {
	r.pending = append(r.pending, events.Envelope{
		RoomCode: r.code,
		PlayerID: playerID,
		Event:    events.New(r.code, t, data, r.clock.Now()),
	})
}

// flush publishes queued events once the command has finished mutating
// state and arming timers.
func (r *Room) flush() {
	pending := r.pending
	r.pending = nil
	for _, env := range pending {
		r.publisher.Publish(env)
	}
}

// Close shuts the room down, cancelling all of its timers.
func (r *Room) Close(reason string) error {
	return r.exec(func() error {
		r.shutdown(reason)
		return nil
	})
}

func (r *Room) shutdown(reason string) {
	if r.closed {
		return
	}
	r.closed = true
	r.sched.Stop()
	r.emit(events.TypeRoomClosed, events.RoomClosedPayload{Reason: reason})
	r.logger.Info().Str("reason", reason).Str("status", string(r.status)).Msg("closing room")
}
