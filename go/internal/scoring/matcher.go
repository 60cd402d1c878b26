package scoring

import (
	"fmt"
	"strings"

	"github.com/mcdev12/quizrush/go/internal/models"
)

// Matcher decides whether a submitted answer is correct.
type Matcher interface {
	Match(submitted, correct string) bool
}

// MatchFunc adapts a function to Matcher.
type MatchFunc func(submitted, correct string) bool

func (f MatchFunc) Match(submitted, correct string) bool { return f(submitted, correct) }

// Exact compares answers byte for byte.
var Exact Matcher = MatchFunc(func(submitted, correct string) bool {
	return submitted == correct
})

// Normalized ignores surrounding whitespace, repeated inner whitespace and case.
var Normalized Matcher = MatchFunc(func(submitted, correct string) bool {
	return strings.EqualFold(normalize(submitted), normalize(correct))
})

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatcherFor returns the matcher for a room's answer matching policy.
func MatcherFor(policy models.AnswerMatching) (Matcher, error) {
	switch policy {
	case models.AnswerMatchingExact, "":
		return Exact, nil
	case models.AnswerMatchingNormalized:
		return Normalized, nil
	}
	return nil, fmt.Errorf("unknown answer matching policy %q", policy)
}
