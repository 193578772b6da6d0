// Package catalog owns exam definitions: creation with validation, lookup,
// listing per grade and deletion.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/store"
)

var (
	ErrForbidden          = errors.New("only admins can author exams")
	ErrEmptyName          = errors.New("exam name is empty")
	ErrInvalidGrade       = errors.New("unknown grade")
	ErrNoQuestions        = errors.New("exam has no questions")
	ErrIncompleteQuestion = errors.New("question text or option is blank")
	ErrInvalidAnswerKey   = errors.New("correct answer out of range")
	ErrNotFound           = errors.New("exam not found")
)

// QuestionError ties a validation failure to a question by its 1-based
// position in the submitted list.
type QuestionError struct {
	N   int
	Err error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %v", e.N, e.Err)
}

func (e *QuestionError) Unwrap() error {
	return e.Err
}

// QuestionInput is an unvalidated question as authored.
type QuestionInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Catalog is the CRUD surface over exams.
type Catalog struct {
	store *store.Store
	now   func() time.Time
}

// New creates a Catalog over s.
func New(s *store.Store) *Catalog {
	return &Catalog{store: s, now: time.Now}
}

// Create validates every field and question, then writes the exam once.
func (c *Catalog) Create(author model.User, name, grade string, questions []QuestionInput) (*model.Exam, error) {
	exam, err := c.build(author, name, grade, questions)
	if err != nil {
		return nil, err
	}
	if err := c.store.AppendExam(exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

func (c *Catalog) build(author model.User, name, grade string, questions []QuestionInput) (model.Exam, error) {
	if !author.IsAdmin() {
		return model.Exam{}, ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Exam{}, ErrEmptyName
	}
	if !model.ValidGrade(grade) {
		return model.Exam{}, ErrInvalidGrade
	}
	if len(questions) == 0 {
		return model.Exam{}, ErrNoQuestions
	}

	exam := model.Exam{
		ID:        uuid.NewString(),
		Name:      name,
		Grade:     grade,
		Questions: make([]model.Question, 0, len(questions)),
		CreatedAt: c.now().UTC(),
		CreatedBy: author.ID,
	}
	for i, in := range questions {
		q, err := validateQuestion(in)
		if err != nil {
			return model.Exam{}, &QuestionError{N: i + 1, Err: err}
		}
		exam.Questions = append(exam.Questions, q)
	}
	return exam, nil
}

func validateQuestion(in QuestionInput) (model.Question, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || len(in.Options) != model.OptionsPerQuestion {
		return model.Question{}, ErrIncompleteQuestion
	}
	options := make([]string, len(in.Options))
	for i, o := range in.Options {
		options[i] = strings.TrimSpace(o)
		if options[i] == "" {
			return model.Question{}, ErrIncompleteQuestion
		}
	}
	if in.CorrectAnswer < 0 || in.CorrectAnswer >= len(options) {
		return model.Question{}, ErrInvalidAnswerKey
	}
	return model.Question{
		ID:            uuid.NewString(),
		Text:          text,
		Options:       options,
		CorrectAnswer: in.CorrectAnswer,
	}, nil
}

// List returns every exam in creation order.
func (c *Catalog) List() ([]model.Exam, error) {
	return c.store.Exams()
}

// ListByGrade returns the exams for one grade, oldest first.
func (c *Catalog) ListByGrade(grade string) ([]model.Exam, error) {
	all, err := c.store.Exams()
	if err != nil {
		return nil, err
	}
	var exams []model.Exam
	for _, e := range all {
		if e.Grade == grade {
			exams = append(exams, e)
		}
	}
	slices.SortStableFunc(exams, func(a, b model.Exam) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return exams, nil
}

// GetByID returns the exam or ErrNotFound.
func (c *Catalog) GetByID(id string) (*model.Exam, error) {
	exam, err := c.store.ExamByID(id)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, ErrNotFound
	}
	return exam, nil
}

// Delete removes the exam. Results that reference it are left alone.
func (c *Catalog) Delete(id string) error {
	all, err := c.store.Exams()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(all), func(e model.Exam) bool { return e.ID == id })
	if len(kept) == len(all) {
		return ErrNotFound
	}
	if err := c.store.ReplaceExams(kept); err != nil {
		return err
	}
	slog.Info("deleted exam", "id", id)
	return nil
}
