// Package gateway is the transport adapter between WebSocket clients and
// rooms. It resolves each connection's player id, turns inbound frames into
// room commands, delivers room events to the right connections, and serves
// the REST API used to create and inspect rooms.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizrush/go/internal/content"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/registry"
	"github.com/mcdev12/quizrush/go/internal/room"
)

// Rooms is what the service needs from the room registry.
type Rooms interface {
	RoomLookup
	CreateRoom(questions []models.Question, settings models.Settings) (*room.Room, error)
	Stats() registry.Stats
}

// Config holds configuration for the gateway service
type Config struct {
	Connection         ConnectionConfig
	DefaultSettings    models.Settings
	DefaultQuestionSet string

	// Room creations allowed per client IP per minute. Zero disables the limit.
	CreateRateLimit int

	// When set, connections must present an HS256 token signed with this
	// secret. Otherwise the player id is taken from the request.
	JWTSecret string
	TokenTTL  time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		Connection:      DefaultConnectionConfig(),
		DefaultSettings: models.DefaultSettings(),
		CreateRateLimit: 10,
		TokenTTL:        24 * time.Hour,
	}
}

// Service wires the connection manager, the dispatcher and the HTTP routes.
type Service struct {
	config     Config
	cm         *ConnectionManager
	dispatcher *Dispatcher
	rooms      Rooms
	questions  content.Provider
	identity   IdentityResolver
	tokens     *JWTIdentity
}

// NewService creates the gateway. cm must be the same connection manager the
// rooms publish their events to.
func NewService(config Config, cm *ConnectionManager, rooms Rooms, questions content.Provider) *Service {
	s := &Service{
		config:    config,
		cm:        cm,
		rooms:     rooms,
		questions: questions,
		identity:  QueryIdentity{},
	}
	if config.JWTSecret != "" {
		s.tokens = NewJWTIdentity(config.JWTSecret, config.TokenTTL)
		s.identity = s.tokens
	}
	s.dispatcher = NewDispatcher(rooms, cm)
	return s
}

// Start delivers room events until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Bool("jwt", s.tokens != nil).Msg("starting quiz gateway")
	s.cm.Start(ctx)
	log.Info().Msg("quiz gateway stopped")
}

// Router returns the HTTP handler for the WebSocket endpoint and the REST API.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-ID"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/ws/stats", s.handleStats)

	r.Route("/api", func(r chi.Router) {
		create := r.With()
		if s.config.CreateRateLimit > 0 {
			create = r.With(httprate.LimitByIP(s.config.CreateRateLimit, time.Minute))
		}
		create.Post("/rooms", s.handleCreateRoom)
		r.Get("/rooms/{code}", s.handleGetRoom)
		r.Get("/rooms/{code}/results", s.handleGetResults)
		r.Get("/question-sets", s.handleListSets)
		if s.tokens != nil {
			create.Post("/tokens", s.handleIssueToken)
		}
	})

	log.Info().Msg("quiz gateway routes registered")
	return r
}

// HandleWebSocket upgrades a client connection. The optional room query
// parameter attaches the connection to a room before its first room:join.
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID, err := s.identity.Resolve(r)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, ErrMissingToken) && !errors.Is(err, ErrInvalidToken) {
			status = http.StatusBadRequest
		}
		hlog.FromRequest(r).Warn().Err(err).Msg("rejected WebSocket connection")
		http.Error(w, err.Error(), status)
		return
	}

	roomCode := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("room")))
	if roomCode != "" {
		if _, err := s.rooms.Get(roomCode); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	if err := s.cm.UpgradeConnection(w, r, playerID, roomCode); err != nil {
		// The upgrader has already written the HTTP error.
		hlog.FromRequest(r).Error().
			Err(err).
			Str("room_code", roomCode).
			Str("player_id", playerID).
			Msg("failed to upgrade WebSocket connection")
	}
}

type statsResponse struct {
	Connections ConnectionStats `json:"connections"`
	Rooms       registry.Stats  `json:"rooms"`
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Connections: s.cm.GetConnectionStats(),
		Rooms:       s.rooms.Stats(),
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
