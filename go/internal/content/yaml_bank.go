package content

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizrush/go/internal/models"
)

type bankFile struct {
	Sets []questionSet `yaml:"sets"`
}

type questionSet struct {
	Name      string            `yaml:"name"`
	Title     string            `yaml:"title"`
	Questions []models.Question `yaml:"questions"`
}

// YAMLBank is a Provider backed by question sets loaded from YAML.
type YAMLBank struct {
	sets  map[string]questionSet
	order []string
}

// LoadYAMLBank reads and validates a question bank file.
func LoadYAMLBank(path string) (*YAMLBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	bank, err := ParseYAMLBank(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("path", path).Int("sets", len(bank.order)).Msg("loaded question bank")
	return bank, nil
}

// ParseYAMLBank parses and validates a question bank document.
func ParseYAMLBank(data []byte) (*YAMLBank, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}

	bank := &YAMLBank{sets: make(map[string]questionSet, len(file.Sets))}
	for _, set := range file.Sets {
		if set.Name == "" {
			return nil, fmt.Errorf("%w: question set without a name", ErrInvalidQuestion)
		}
		if _, dup := bank.sets[set.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate question set %q", ErrInvalidQuestion, set.Name)
		}
		if len(set.Questions) == 0 {
			return nil, fmt.Errorf("%w: question set %q is empty", ErrInvalidQuestion, set.Name)
		}

		ids := make(map[string]bool, len(set.Questions))
		for i, q := range set.Questions {
			if err := Validate(q); err != nil {
				return nil, fmt.Errorf("set %q question %d: %w", set.Name, i, err)
			}
			if ids[q.ID] {
				return nil, fmt.Errorf("%w: set %q repeats question id %q", ErrInvalidQuestion, set.Name, q.ID)
			}
			ids[q.ID] = true
		}

		bank.sets[set.Name] = set
		bank.order = append(bank.order, set.Name)
	}
	return bank, nil
}

// Validate checks that a question can be played.
func Validate(q models.Question) error {
	switch {
	case q.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	case q.Content == "":
		return fmt.Errorf("%w: %s has no content", ErrInvalidQuestion, q.ID)
	case q.Answer == "":
		return fmt.Errorf("%w: %s has no answer", ErrInvalidQuestion, q.ID)
	case q.TimeLimit <= 0:
		return fmt.Errorf("%w: %s needs a positive time limit", ErrInvalidQuestion, q.ID)
	case q.Points < 0:
		return fmt.Errorf("%w: %s has negative points", ErrInvalidQuestion, q.ID)
	}

	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: %s needs at least two options", ErrInvalidQuestion, q.ID)
		}
		if !slices.Contains(q.Options, q.Answer) {
			return fmt.Errorf("%w: %s answer is not one of its options", ErrInvalidQuestion, q.ID)
		}
	case models.QuestionTypeTrueFalse:
		if q.Answer != "true" && q.Answer != "false" {
			return fmt.Errorf("%w: %s answer must be true or false", ErrInvalidQuestion, q.ID)
		}
	case models.QuestionTypeText:
	default:
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidQuestion, q.ID, q.Type)
	}
	return nil
}

// Questions returns a copy of the requested set.
func (b *YAMLBank) Questions(ctx context.Context, req Request) ([]models.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, ok := b.sets[req.Set]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSetNotFound, req.Set)
	}

	questions := make([]models.Question, len(set.Questions))
	for i, q := range set.Questions {
		q.Options = slices.Clone(q.Options)
		questions[i] = q
	}
	if req.Shuffle {
		rand.Shuffle(len(questions), func(i, j int) { questions[i], questions[j] = questions[j], questions[i] })
	}
	if req.Limit > 0 && req.Limit < len(questions) {
		questions = questions[:req.Limit]
	}
	return questions, nil
}

// Sets lists the available sets in file order.
func (b *YAMLBank) Sets(ctx context.Context) ([]SetInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos := make([]SetInfo, 0, len(b.order))
	for _, name := range b.order {
		set := b.sets[name]
		infos = append(infos, SetInfo{Name: set.Name, Title: set.Title, Questions: len(set.Questions)})
	}
	return infos, nil
}
