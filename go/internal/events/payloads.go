// Package events defines the outbound messages rooms produce and the
// publisher boundary they are delivered through.
package events

import (
	"github.com/mcdev12/quizrush/go/internal/models"
)

// Session describes a room as seen by a client that just (re)joined.
type Session struct {
	Code           string                 `json:"code"`
	Status         models.RoomStatus      `json:"status"`
	HostID         string                 `json:"hostId"`
	QuestionIndex  int                    `json:"questionIndex"`
	TotalQuestions int                    `json:"totalQuestions"`
	Question       *models.PublicQuestion `json:"question,omitempty"`
	Remaining      int                    `json:"remaining"`
	IsBonus        bool                   `json:"isBonus"`
	Players        []models.Player        `json:"players"`
	Settings       models.Settings        `json:"settings"`
}

// RoomJoinedPayload is sent to the joining connection only.
type RoomJoinedPayload struct {
	Session Session         `json:"session"`
	Player  models.Player   `json:"player"`
	Players []models.Player `json:"players"`
}

// ErrorPayload reports a rejected request to the originating connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

type PlayerJoinedPayload struct {
	Player      models.Player `json:"player"`
	PlayerCount int           `json:"playerCount"`
}

// PlayerDisconnectedPayload is broadcast when a player's transport detaches or
// the player leaves on purpose.
type PlayerDisconnectedPayload struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Left     bool   `json:"left"`
}

type PlayerReconnectedPayload struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

type HostChangedPayload struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

type GameStartedPayload struct {
	TotalQuestions int `json:"totalQuestions"`
}

// GamePausedPayload carries the seconds left on the question when paused.
type GamePausedPayload struct {
	Remaining int `json:"remaining"`
}

type GameResumedPayload struct {
	Remaining int `json:"remaining"`
}

// QuestionNewPayload carries the redacted question.
type QuestionNewPayload struct {
	Question  models.PublicQuestion `json:"question"`
	Index     int                   `json:"index"`
	Total     int                   `json:"total"`
	TimeLimit int                   `json:"timeLimit"`
}

// QuestionBonusPayload announces that correct answers to the next question
// are multiplied. It is drawn by the room, never by clients.
type QuestionBonusPayload struct {
	QuestionID string `json:"questionId"`
	Multiplier int    `json:"multiplier"`
}

type TimeUpdatePayload struct {
	Remaining int `json:"remaining"`
}

// QuestionStats summarises the answers given to one question.
type QuestionStats struct {
	AnswerDistribution map[string]int `json:"answerDistribution"`
	TotalAnswers       int            `json:"totalAnswers"`
	CorrectCount       int            `json:"correctCount"`
	AvgResponseTime    float64        `json:"avgResponseTime"`
}

// End reasons reported in QuestionEndedPayload.
const (
	EndReasonTimeout     = "timeout"
	EndReasonAllAnswered = "all_answered"
)

type QuestionEndedPayload struct {
	QuestionID    string        `json:"questionId"`
	CorrectAnswer string        `json:"correctAnswer"`
	Explanation   string        `json:"explanation,omitempty"`
	Stats         QuestionStats `json:"stats"`
	Reason        string        `json:"reason"`
}

type LeaderboardPayload struct {
	Players []models.Player `json:"players"`
}

type GameFinishedPayload struct {
	Results  []models.PlayerResult `json:"results"`
	Rankings []models.Ranking      `json:"rankings"`
}

// PlayerScoredPayload is the public counterpart of AnswerResult.
type PlayerScoredPayload struct {
	PlayerID string `json:"playerId"`
	Points   int    `json:"points"`
	Streak   int    `json:"streak"`
	NewScore int    `json:"newScore"`
}

// AnswerResult is computed once per accepted submission and sent privately to
// the submitting player.
type AnswerResult struct {
	PlayerID     string  `json:"playerId"`
	QuestionID   string  `json:"questionId"`
	Answer       string  `json:"answer"`
	IsCorrect    bool    `json:"isCorrect"`
	ResponseTime float64 `json:"responseTime"`
	PointsEarned int     `json:"pointsEarned"`
	BonusPoints  int     `json:"bonusPoints"`
	TimeBonus    int     `json:"timeBonus"`
	StreakBonus  int     `json:"streakBonus"`
	Multiplier   int     `json:"multiplier"`
	NewScore     int     `json:"newScore"`
	NewStreak    int     `json:"newStreak"`
}

type PowerUpActivatedPayload struct {
	Type      models.PowerUpType `json:"type"`
	PlayerID  string             `json:"playerId"`
	Remaining int                `json:"remaining"`
}

type PowerUpHintPayload struct {
	QuestionID string `json:"questionId"`
	Hint       string `json:"hint"`
}

// PowerUpRemovedPayload lists the wrong options a fifty-fifty removes.
type PowerUpRemovedPayload struct {
	QuestionID string   `json:"questionId"`
	Removed    []string `json:"removed"`
}

// Close reasons reported in RoomClosedPayload.
const (
	CloseReasonAbandoned = "abandoned"
	CloseReasonExpired   = "expired"
	CloseReasonShutdown  = "shutdown"
	CloseReasonDeleted   = "deleted"
)

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}
