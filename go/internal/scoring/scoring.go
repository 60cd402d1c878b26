// Package scoring computes the points awarded for a single answer. It holds no
// state and knows nothing about rooms or rosters.
package scoring

import "math"

const (
	// MaxTimeBonus is awarded for an answer submitted at the very first instant.
	MaxTimeBonus = 50

	// MaxStreakSteps caps the streak bonus at +50% (ten percent per step).
	MaxStreakSteps = 5
)

// Input describes one answer.
type Input struct {
	Points       int     // question point value
	TimeLimit    float64 // seconds
	ResponseTime float64 // seconds since the question started
	Streak       int     // consecutive correct answers before this one
	Correct      bool

	// Multiplier scales the final points of a correct answer. Zero means 1.
	Multiplier int
}

// Breakdown is the outcome of Score.
type Breakdown struct {
	PointsEarned int
	TimeBonus    int
	StreakBonus  int
	NewStreak    int
}

// BonusPoints is everything earned beyond the question's base point value.
func (b Breakdown) BonusPoints(points int) int {
	if b.PointsEarned == 0 {
		return 0
	}
	return b.PointsEarned - points
}

// TimeBonus returns floor((1 - responseTime/timeLimit) * MaxTimeBonus), with the
// response time clamped to [0, timeLimit].
func TimeBonus(timeLimit, responseTime float64) int {
	if timeLimit <= 0 {
		return 0
	}
	rt := ClampResponseTime(timeLimit, responseTime)
	return int(math.Floor((timeLimit - rt) * MaxTimeBonus / timeLimit))
}

// ClampResponseTime bounds a client-reported response time to [0, timeLimit].
func ClampResponseTime(timeLimit, responseTime float64) float64 {
	if math.IsNaN(responseTime) || responseTime < 0 {
		return 0
	}
	if responseTime > timeLimit {
		return timeLimit
	}
	return responseTime
}

// StreakBonus returns floor(base * 0.1 * min(newStreak-1, MaxStreakSteps)).
func StreakBonus(base, newStreak int) int {
	steps := min(newStreak-1, MaxStreakSteps)
	if steps <= 0 || base <= 0 {
		return 0
	}
	return base * steps / 10
}

// Score computes the points for one answer.
func Score(in Input) Breakdown {
	if !in.Correct {
		return Breakdown{NewStreak: 0}
	}

	timeBonus := TimeBonus(in.TimeLimit, in.ResponseTime)
	base := in.Points + timeBonus
	newStreak := in.Streak + 1
	streakBonus := StreakBonus(base, newStreak)

	earned := base + streakBonus
	if in.Multiplier > 1 {
		earned *= in.Multiplier
	}

	return Breakdown{
		PointsEarned: earned,
		TimeBonus:    timeBonus,
		StreakBonus:  streakBonus,
		NewStreak:    newStreak,
	}
}
