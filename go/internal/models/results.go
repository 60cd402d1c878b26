package models

import "time"

// PlayerResult is one player's final line in a finished game.
type PlayerResult struct {
	Rank         int     `json:"rank"`
	PlayerID     string  `json:"playerId"`
	Nickname     string  `json:"nickname"`
	Avatar       string  `json:"avatar,omitempty"`
	Score        int     `json:"score"`
	CorrectCount int     `json:"correctCount"`
	WrongCount   int     `json:"wrongCount"`
	MaxStreak    int     `json:"maxStreak"`
	Accuracy     float64 `json:"accuracy"`
}

// Ranking is the compact leaderboard entry sent with game:finished.
type Ranking struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// GameResults is handed to the persistence sink once a room reaches FINISHED.
type GameResults struct {
	GameID         string         `json:"gameId"`
	RoomCode       string         `json:"roomCode"`
	TotalQuestions int            `json:"totalQuestions"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Results        []PlayerResult `json:"results"`
}

// Rankings derives the compact ranking list from the results.
func (g GameResults) Rankings() []Ranking {
	rankings := make([]Ranking, len(g.Results))
	for i, r := range g.Results {
		rankings[i] = Ranking{Rank: r.Rank, PlayerID: r.PlayerID, Nickname: r.Nickname, Score: r.Score}
	}
	return rankings
}
