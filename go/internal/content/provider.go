// Package content supplies the fixed question list a room is created with.
package content

import (
	"context"
	"errors"

	"github.com/mcdev12/quizrush/go/internal/models"
)

var (
	ErrSetNotFound     = errors.New("question set not found")
	ErrInvalidQuestion = errors.New("invalid question")
)

// Request selects questions for a new room.
type Request struct {
	Set     string
	Limit   int // zero means the whole set
	Shuffle bool
}

// SetInfo describes one available question set.
type SetInfo struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
}

// Provider returns questions for rooms. The returned slice belongs to the
// caller.
type Provider interface {
	Questions(ctx context.Context, req Request) ([]models.Question, error)
	Sets(ctx context.Context) ([]SetInfo, error)
}
