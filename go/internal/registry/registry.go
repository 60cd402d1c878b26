// Package registry holds the process-wide map of live rooms.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/room"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrCodeCollision = errors.New("room code already in use")
	ErrNoFreeCode    = errors.New("could not find a free room code")
)

const maxCodeAttempts = 16

// Registry maps room codes to running rooms. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room.Room

	opts     room.Options
	generate CodeGenerator
}

// New creates a registry whose rooms share opts. opts.OnClose is chained
// after the registry's own cleanup.
func New(opts room.Options) *Registry {
	return &Registry{
		rooms:    make(map[string]*room.Room),
		opts:     opts,
		generate: RandomCode,
	}
}

// WithCodeGenerator replaces the code generator used by CreateRoom.
func (r *Registry) WithCodeGenerator(g CodeGenerator) *Registry {
	r.generate = g
	return r
}

// Create starts a room under code. A code that is already registered is a
// configuration error and aborts creation.
func (r *Registry) Create(code string, questions []models.Question, settings models.Settings) (*room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[code]; exists {
		return nil, fmt.Errorf("%w: %s", ErrCodeCollision, code)
	}
	return r.create(code, questions, settings)
}

// CreateRoom starts a room under a freshly generated code.
func (r *Registry) CreateRoom(questions []models.Question, settings models.Settings) (*room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxCodeAttempts {
		code := r.generate()
		if _, exists := r.rooms[code]; !exists {
			return r.create(code, questions, settings)
		}
	}
	return nil, ErrNoFreeCode
}

// create registers a new room. Caller holds r.mu, which also keeps the room's
// OnClose from running before rm is assigned.
func (r *Registry) create(code string, questions []models.Question, settings models.Settings) (*room.Room, error) {
	var rm *room.Room
	opts := r.opts
	opts.OnClose = func(code string) {
		r.remove(code, rm)
		if r.opts.OnClose != nil {
			r.opts.OnClose(code)
		}
	}

	rm, err := room.New(code, questions, settings, opts)
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", code, err)
	}
	r.rooms[code] = rm

	log.Info().Str("room_code", code).Int("rooms", len(r.rooms)).Msg("room registered")
	return rm, nil
}

// remove drops code from the map if it still points at rm.
func (r *Registry) remove(code string, rm *room.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.rooms[code]; ok && cur == rm {
		delete(r.rooms, code)
		log.Info().Str("room_code", code).Int("rooms", len(r.rooms)).Msg("room unregistered")
	}
}

// Get looks up a room by code.
func (r *Registry) Get(code string) (*room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm, nil
}

// Delete removes a room and shuts it down.
func (r *Registry) Delete(code string) error {
	r.mu.Lock()
	rm, ok := r.rooms[code]
	if ok {
		delete(r.rooms, code)
	}
	r.mu.Unlock()

	if !ok {
		return ErrRoomNotFound
	}
	if err := rm.Close(events.CloseReasonDeleted); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		return err
	}
	log.Info().Str("room_code", code).Msg("room deleted")
	return nil
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Rooms    int                       `json:"rooms"`
	ByStatus map[models.RoomStatus]int `json:"byStatus"`
}

// Stats counts rooms by lifecycle state.
func (r *Registry) Stats() Stats {
	stats := Stats{ByStatus: make(map[models.RoomStatus]int)}
	for _, rm := range r.list() {
		status, err := rm.Status()
		if err != nil {
			continue
		}
		stats.Rooms++
		stats.ByStatus[status]++
	}
	return stats
}

// CloseAll shuts down every room and waits for them to exit.
func (r *Registry) CloseAll(reason string) {
	rooms := r.list()
	for _, rm := range rooms {
		if err := rm.Close(reason); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			log.Warn().Err(err).Str("room_code", rm.Code()).Msg("failed to close room")
		}
	}
	for _, rm := range rooms {
		<-rm.Done()
	}
	log.Info().Int("rooms", len(rooms)).Str("reason", reason).Msg("closed all rooms")
}

func (r *Registry) list() []*room.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*room.Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	return rooms
}
