package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizrush/go/internal/events"
	"github.com/mcdev12/quizrush/go/internal/models"
)

// nextQuestion lets the results delay elapse and waits for question n (1-based).
func (f *fixture) nextQuestion(t *testing.T, n int) {
	t.Helper()
	f.clock.Advance(f.room.settings.ResultsDelay)
	f.events.waitBroadcast(t, events.TypeQuestionNew, n)
}

func TestStreakScoringScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a")
	require.NoError(t, f.room.Start("a"))

	first := f.answer(t, "a", "q1", "Paris", 6)
	assert.Equal(t, 140, first.PointsEarned)
	assert.Equal(t, 1, first.NewStreak)

	f.nextQuestion(t, 2)
	second := f.answer(t, "a", "q2", "true", 6)
	assert.Equal(t, 154, second.PointsEarned)
	assert.Equal(t, 2, second.NewStreak)

	f.nextQuestion(t, 3)
	third := f.answer(t, "a", "q3", "Mars", 6)
	assert.Equal(t, events.AnswerResult{
		PlayerID:     "a",
		QuestionID:   "q3",
		Answer:       "Mars",
		IsCorrect:    true,
		ResponseTime: 6,
		PointsEarned: 168,
		BonusPoints:  68,
		TimeBonus:    40,
		StreakBonus:  28,
		Multiplier:   1,
		NewScore:     140 + 154 + 168,
		NewStreak:    3,
	}, third)

	p := f.player(t, "a")
	assert.Equal(t, 3, p.MaxStreak)
	assert.Equal(t, 3, p.CorrectCount)

	results := f.events.private("a", events.TypeAnswerResult)
	require.Len(t, results, 3)
	assert.Equal(t, third, results[2].Data)
	assert.Len(t, f.events.broadcasts(events.TypePlayerScored), 3)
}

func TestWrongAnswerResetsStreak(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a")
	require.NoError(t, f.room.Start("a"))

	f.answer(t, "a", "q1", "Paris", 3)
	f.nextQuestion(t, 2)
	res := f.answer(t, "a", "q2", "false", 3)

	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0, res.PointsEarned)
	assert.Equal(t, 0, res.NewStreak)

	p := f.player(t, "a")
	assert.Equal(t, 1, p.MaxStreak)
	assert.Equal(t, 1, p.WrongCount)
	assert.Equal(t, 145, p.Score)
}

func TestDuplicateAnswerIsRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b")
	require.NoError(t, f.room.Start("a"))

	first := f.answer(t, "a", "q1", "Paris", 2)

	_, err := f.room.SubmitAnswer("a", Submission{QuestionID: "q1", Answer: "London", ResponseTime: 3})
	assert.ErrorIs(t, err, ErrDuplicateAnswer)

	assert.Equal(t, first.NewScore, f.player(t, "a").Score)
	assert.Len(t, f.events.broadcasts(events.TypePlayerScored), 1)
	assert.Len(t, f.events.private("a", events.TypeAnswerResult), 1)
	assert.Equal(t, models.RoomStatusInProgress, f.status(t))
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b")
	require.NoError(t, f.room.Start("a"))

	const attempts = 20
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := f.room.SubmitAnswer("a", Submission{QuestionID: "q1", Answer: "Paris", ResponseTime: 1})
			errs <- err
		}()
	}

	accepted := 0
	for i := 0; i < attempts; i++ {
		if err := <-errs; err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateAnswer)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 148, f.player(t, "a").Score)
}

func TestAnswerRejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b")

	_, err := f.room.SubmitAnswer("a", Submission{QuestionID: "q1", Answer: "Paris"})
	assert.ErrorIs(t, err, ErrNotInProgress)

	require.NoError(t, f.room.Start("a"))

	_, err = f.room.SubmitAnswer("a", Submission{QuestionID: "q2", Answer: "true"})
	assert.ErrorIs(t, err, ErrWrongQuestion)

	_, err = f.room.SubmitAnswer("ghost", Submission{QuestionID: "q1", Answer: "Paris"})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	assert.Empty(t, f.events.broadcasts(events.TypePlayerScored))
}

func TestEarlyExitWhenAllAnswered(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b")
	require.NoError(t, f.room.Start("a"))

	f.answer(t, "a", "q1", "Paris", 4)
	assert.Empty(t, f.events.broadcasts(events.TypeQuestionEnded))

	f.answer(t, "b", "q1", "Berlin", 8)

	ended := f.events.broadcasts(events.TypeQuestionEnded)
	require.Len(t, ended, 1)
	payload := ended[0].Data.(events.QuestionEndedPayload)
	assert.Equal(t, events.EndReasonAllAnswered, payload.Reason)
	assert.Equal(t, "Paris", payload.CorrectAnswer)
	assert.Equal(t, "Paris has been the capital since 987.", payload.Explanation)
	assert.Equal(t, events.QuestionStats{
		AnswerDistribution: map[string]int{"Paris": 1, "Berlin": 1},
		TotalAnswers:       2,
		CorrectCount:       1,
		AvgResponseTime:    6,
	}, payload.Stats)

	assert.Equal(t, models.RoomStatusShowingResults, f.status(t))
	assert.Len(t, f.events.broadcasts(events.TypeLeaderboardUpdate), 1)

	// The cancelled question timer must not end the question a second time.
	f.clock.Advance(30 * time.Second)
	f.events.waitBroadcast(t, events.TypeQuestionNew, 2)
	assert.Len(t, f.events.broadcasts(events.TypeQuestionEnded), 1)
}

func TestTimeoutEndsQuestion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b", "c")
	require.NoError(t, f.room.Start("a"))

	f.answer(t, "a", "q1", "Paris", 5)
	f.answer(t, "b", "q1", "London", 10)

	f.clock.Advance(29 * time.Second)
	assert.Never(t, func() bool { return len(f.events.broadcasts(events.TypeQuestionEnded)) > 0 },
		100*time.Millisecond, 5*time.Millisecond)

	f.clock.Advance(time.Second)
	ended := f.events.waitBroadcast(t, events.TypeQuestionEnded, 1)
	payload := ended[0].Data.(events.QuestionEndedPayload)
	assert.Equal(t, events.EndReasonTimeout, payload.Reason)
	assert.Equal(t, 2, payload.Stats.TotalAnswers)
	assert.Equal(t, map[string]int{"Paris": 1, "London": 1}, payload.Stats.AnswerDistribution)

	c := f.player(t, "c")
	assert.Equal(t, 0, c.Streak)
	assert.Equal(t, 1, c.WrongCount)
	assert.Equal(t, 0, c.Score)

	// Late answers are rejected once the question is over.
	_, err := f.room.SubmitAnswer("c", Submission{QuestionID: "q1", Answer: "Paris", ResponseTime: 29})
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestTimeUpdates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a")
	require.NoError(t, f.room.Start("a"))

	for n := 1; n <= 3; n++ {
		f.clock.Advance(time.Second)
		f.events.waitBroadcast(t, events.TypeQuestionTimeUpdate, n)
	}
	updates := f.events.broadcasts(events.TypeQuestionTimeUpdate)
	var remaining []int
	for _, ev := range updates {
		remaining = append(remaining, ev.Data.(events.TimeUpdatePayload).Remaining)
	}
	assert.Equal(t, []int{29, 28, 27}, remaining)
}

func TestDisconnectCompletesLedger(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b")
	require.NoError(t, f.room.Start("a"))

	f.answer(t, "a", "q1", "Paris", 3)
	require.NoError(t, f.room.Disconnect("b"))

	ended := f.events.broadcasts(events.TypeQuestionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, events.EndReasonAllAnswered, ended[0].Data.(events.QuestionEndedPayload).Reason)
	assert.Equal(t, 1, f.player(t, "b").WrongCount)
}

func TestNormalizedMatching(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.AnswerMatching = models.AnswerMatchingNormalized
	f := newFixture(t, settings)
	f.join(t, "a")
	require.NoError(t, f.room.Start("a"))

	res := f.answer(t, "a", "q1", "  paris ", 0)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 150, res.PointsEarned)
}

func TestBonusQuestion(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.BonusChance = 1
	settings.BonusMultiplier = 2
	f := newFixture(t, settings)
	f.join(t, "a")
	require.NoError(t, f.room.Start("a"))

	types := f.events.types()
	bonusAt := indexOf(types, events.TypeQuestionBonus)
	newAt := indexOf(types, events.TypeQuestionNew)
	require.GreaterOrEqual(t, bonusAt, 0)
	assert.Less(t, bonusAt, newAt)
	assert.Equal(t, events.QuestionBonusPayload{QuestionID: "q1", Multiplier: 2},
		f.events.broadcasts(events.TypeQuestionBonus)[0].Data)

	res := f.answer(t, "a", "q1", "Paris", 6)
	assert.Equal(t, 280, res.PointsEarned)
	assert.Equal(t, 2, res.Multiplier)
}

func TestBonusDrawIsSeeded(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.BonusChance = 0.5
	settings.Seed = 42

	draw := func() []bool {
		f := newFixture(t, settings)
		f.join(t, "a")
		require.NoError(t, f.room.Start("a"))
		var bonus []bool
		for i, q := range testQuestions() {
			if i > 0 {
				f.nextQuestion(t, i+1)
			}
			before := len(f.events.broadcasts(events.TypeQuestionBonus))
			bonus = append(bonus, before > 0 && f.events.broadcasts(events.TypeQuestionBonus)[before-1].Data.(events.QuestionBonusPayload).QuestionID == q.ID)
			f.answer(t, "a", q.ID, "x", 1)
		}
		return bonus
	}

	assert.Equal(t, draw(), draw())
}

func TestScoreIsMonotonic(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testSettings())
	f.join(t, "a", "b")
	require.NoError(t, f.room.Start("a"))

	answers := []struct{ a, b string }{{"Paris", "Rome"}, {"false", "true"}, {"Mars", "Mars"}}
	last := map[string]int{}
	for i, q := range testQuestions() {
		if i > 0 {
			f.nextQuestion(t, i+1)
		}
		ra := f.answer(t, "a", q.ID, answers[i].a, float64(i*7))
		rb := f.answer(t, "b", q.ID, answers[i].b, float64(i*3))
		assert.GreaterOrEqual(t, ra.NewScore, last["a"])
		assert.GreaterOrEqual(t, rb.NewScore, last["b"])
		last["a"], last["b"] = ra.NewScore, rb.NewScore
	}
}

func indexOf(types []events.Type, t events.Type) int {
	for i, v := range types {
		if v == t {
			return i
		}
	}
	return -1
}
