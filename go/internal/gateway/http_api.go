package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/mcdev12/quizrush/go/internal/content"
	"github.com/mcdev12/quizrush/go/internal/models"
	"github.com/mcdev12/quizrush/go/internal/registry"
)

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	QuestionSet string            `json:"questionSet"`
	Limit       int               `json:"limit,omitempty"`
	Shuffle     bool              `json:"shuffle,omitempty"`
	Settings    *SettingsOverride `json:"settings,omitempty"`
}

// SettingsOverride replaces the fields that are set on top of the server's
// default room settings. Durations are in seconds.
type SettingsOverride struct {
	MaxPlayers          *int                   `json:"maxPlayers,omitempty"`
	CountdownSeconds    *int                   `json:"countdownSeconds,omitempty"`
	ResultsDelaySeconds *float64               `json:"resultsDelaySeconds,omitempty"`
	GracePeriodSeconds  *float64               `json:"gracePeriodSeconds,omitempty"`
	HostTransfer        *bool                  `json:"hostTransfer,omitempty"`
	PauseCredit         *bool                  `json:"pauseCredit,omitempty"`
	AnswerMatching      *models.AnswerMatching `json:"answerMatching,omitempty"`
	PowerUpCharges      *int                   `json:"powerUpCharges,omitempty"`
	BonusChance         *float64               `json:"bonusChance,omitempty"`
	BonusMultiplier     *int                   `json:"bonusMultiplier,omitempty"`
	Seed                *int64                 `json:"seed,omitempty"`
}

// Apply returns base with the override's set fields replaced.
func (o *SettingsOverride) Apply(base models.Settings) models.Settings {
	if o == nil {
		return base
	}
	seconds := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

	if o.MaxPlayers != nil {
		base.MaxPlayers = *o.MaxPlayers
	}
	if o.CountdownSeconds != nil {
		base.CountdownSeconds = *o.CountdownSeconds
	}
	if o.ResultsDelaySeconds != nil {
		base.ResultsDelay = seconds(*o.ResultsDelaySeconds)
	}
	if o.GracePeriodSeconds != nil {
		base.GracePeriod = seconds(*o.GracePeriodSeconds)
	}
	if o.HostTransfer != nil {
		base.HostTransfer = *o.HostTransfer
	}
	if o.PauseCredit != nil {
		base.PauseCredit = *o.PauseCredit
	}
	if o.AnswerMatching != nil {
		base.AnswerMatching = *o.AnswerMatching
	}
	if o.PowerUpCharges != nil {
		base.PowerUpCharges = *o.PowerUpCharges
	}
	if o.BonusChance != nil {
		base.BonusChance = *o.BonusChance
	}
	if o.BonusMultiplier != nil {
		base.BonusMultiplier = *o.BonusMultiplier
	}
	if o.Seed != nil {
		base.Seed = *o.Seed
	}
	return base
}

type CreateRoomResponse struct {
	Code string `json:"code"`
}

type TokenResponse struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.QuestionSet == "" {
		req.QuestionSet = s.config.DefaultQuestionSet
	}

	settings := req.Settings.Apply(s.config.DefaultSettings)
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	questions, err := s.questions.Questions(r.Context(), content.Request{
		Set:     req.QuestionSet,
		Limit:   req.Limit,
		Shuffle: req.Shuffle,
	})
	switch {
	case errors.Is(err, content.ErrSetNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Str("question_set", req.QuestionSet).Msg("failed to load questions")
		writeError(w, http.StatusInternalServerError, errors.New("failed to load questions"))
		return
	}

	rm, err := s.rooms.CreateRoom(questions, settings)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to create room")
		writeError(w, http.StatusInternalServerError, errors.New("failed to create room"))
		return
	}

	hlog.FromRequest(r).Info().
		Str("room_code", rm.Code()).
		Str("question_set", req.QuestionSet).
		Int("questions", len(questions)).
		Msg("room created")
	writeJSON(w, http.StatusCreated, CreateRoomResponse{Code: rm.Code()})
}

func (s *Service) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(strings.ToUpper(chi.URLParam(r, "code")))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	session, err := rm.Snapshot()
	if err != nil {
		writeError(w, http.StatusNotFound, registry.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Service) handleGetResults(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(strings.ToUpper(chi.URLParam(r, "code")))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	results, ok, err := rm.Results()
	if err != nil {
		writeError(w, http.StatusNotFound, registry.ErrRoomNotFound)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, errors.New("game has not finished"))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Service) handleListSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.questions.Sets(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to list question sets")
		writeError(w, http.StatusInternalServerError, errors.New("failed to list question sets"))
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

// handleIssueToken hands out a signed identity for a fresh guest player. It is
// only routed when a JWT secret is configured. Clients keep the token to
// reconnect as the same player.
func (s *Service) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	playerID := "guest-" + uuid.NewString()

	token, err := s.tokens.Issue(playerID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, errors.New("failed to issue token"))
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{PlayerID: playerID, Token: token})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
