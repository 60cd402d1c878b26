package models

import "time"

// QuestionType defines how a question is answered.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeText           QuestionType = "text"
)

// Question is supplied by the content provider when a room is created.
// Rooms never mutate it; only the redacted form leaves the server.
type Question struct {
	ID          string       `json:"id" yaml:"id"`
	Type        QuestionType `json:"type" yaml:"type"`
	Content     string       `json:"content" yaml:"content"`
	Options     []string     `json:"options,omitempty" yaml:"options"`
	Answer      string       `json:"answer" yaml:"answer"`
	TimeLimit   int          `json:"timeLimit" yaml:"time_limit"` // seconds
	Points      int          `json:"points" yaml:"points"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation"`
	Hint        string       `json:"hint,omitempty" yaml:"hint"`
}

// PublicQuestion is a Question without its answer, explanation or hint.
type PublicQuestion struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Content   string       `json:"content"`
	Options   []string     `json:"options,omitempty"`
	TimeLimit int          `json:"timeLimit"`
	Points    int          `json:"points"`
}

// Redacted returns the form of the question that is safe to broadcast.
func (q Question) Redacted() PublicQuestion {
	var options []string
	if len(q.Options) > 0 {
		options = make([]string, len(q.Options))
		copy(options, q.Options)
	}
	return PublicQuestion{
		ID:        q.ID,
		Type:      q.Type,
		Content:   q.Content,
		Options:   options,
		TimeLimit: q.TimeLimit,
		Points:    q.Points,
	}
}

// Duration returns the per-question time limit.
func (q Question) Duration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}
