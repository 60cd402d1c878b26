package room

import (
	"math"
	"slices"

	"github.com/mcdev12/quizrush/go/internal/models"
)

// leaderboard returns copies of the players ordered by score, highest first.
// Ties go to the player who joined earlier.
func (r *Room) leaderboard() []models.Player {
	players := make([]models.Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	slices.SortFunc(players, compareStanding)
	return players
}

func compareStanding(a, b models.Player) int {
	if a.Score != b.Score {
		return b.Score - a.Score
	}
	return a.JoinOrder - b.JoinOrder
}

func (r *Room) gameResults() models.GameResults {
	board := r.leaderboard()
	results := make([]models.PlayerResult, len(board))
	for i, p := range board {
		results[i] = models.PlayerResult{
			Rank:         i + 1,
			PlayerID:     p.ID,
			Nickname:     p.Nickname,
			Avatar:       p.Avatar,
			Score:        p.Score,
			CorrectCount: p.CorrectCount,
			WrongCount:   p.WrongCount,
			MaxStreak:    p.MaxStreak,
			Accuracy:     accuracy(p.CorrectCount, p.WrongCount),
		}
	}
	return models.GameResults{
		GameID:         r.gameID,
		RoomCode:       r.code,
		TotalQuestions: len(r.questions),
		StartedAt:      r.startedAt,
		FinishedAt:     r.finishedAt,
		Results:        results,
	}
}

// accuracy is the percentage of correct answers, rounded to one decimal.
func accuracy(correct, wrong int) float64 {
	total := correct + wrong
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)*1000/float64(total)) / 10
}
