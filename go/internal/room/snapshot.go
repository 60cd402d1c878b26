package room

import (
	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

// Snapshot returns the room as a rejoining client would see it.
func (r *Room) Snapshot() (events.Session, error) {
	var s events.Session
	err := r.exec(func() error {
		s = r.session()
		return nil
	})
	return s, err
}

// Status returns the current lifecycle state.
func (r *Room) Status() (models.RoomStatus, error) {
	var status models.RoomStatus
	err := r.exec(func() error {
		status = r.status
		return nil
	})
	return status, err
}

// Results returns the final results once the game has finished.
func (r *Room) Results() (models.GameResults, bool, error) {
	var (
		res models.GameResults
		ok  bool
	)
	err := r.exec(func() error {
		if r.results != nil {
			res, ok = *r.results, true
		}
		return nil
	})
	return res, ok, err
}

func (r *Room) session() events.Session {
	s := events.Session{
		Code:           r.code,
		Status:         r.status,
		HostID:         r.hostID,
		QuestionIndex:  r.currentIndex,
		TotalQuestions: len(r.questions),
		Players:        r.leaderboard(),
		Settings:       r.settings,
	}
	switch r.status {
	case models.RoomStatusInProgress, models.RoomStatusPaused, models.RoomStatusShowingResults:
		q := r.questions[r.currentIndex].Redacted()
		s.Question = &q
		s.Remaining = r.remainingSeconds()
		s.IsBonus = r.multiplier > 1
	}
	return s
}
