package store

import (
	"log/slog"

	"github.com/manasetna/exams/internal/model"
)

// Exams returns every exam in creation order.
func (s *Store) Exams() ([]model.Exam, error) {
	return List[model.Exam](s, ExamsCollection)
}

// AppendExam stores a validated exam.
func (s *Store) AppendExam(e model.Exam) error {
	if err := Append(s, ExamsCollection, e); err != nil {
		return err
	}
	slog.Info("created exam", "id", e.ID, "name", e.Name, "grade", e.Grade, "questions", len(e.Questions))
	return nil
}

// ReplaceExams overwrites the exam collection.
func (s *Store) ReplaceExams(exams []model.Exam) error {
	return ReplaceAll(s, ExamsCollection, exams)
}

// ExamByID returns an exam by ID, or nil if none exists.
func (s *Store) ExamByID(id string) (*model.Exam, error) {
	exams, err := s.Exams()
	if err != nil {
		return nil, err
	}
	for i := range exams {
		if exams[i].ID == id {
			return &exams[i], nil
		}
	}
	return nil, nil
}
