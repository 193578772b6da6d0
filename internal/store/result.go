package store

import (
	"log/slog"

	"github.com/manasetna/exams/internal/model"
)

// Results returns every recorded result in completion order.
func (s *Store) Results() ([]model.ExamResult, error) {
	return List[model.ExamResult](s, ResultsCollection)
}

// AppendResult records a completed attempt. Results are never updated or
// removed afterwards.
func (s *Store) AppendResult(r model.ExamResult) error {
	if err := Append(s, ResultsCollection, r); err != nil {
		slog.Error("failed to save result", "exam_id", r.ExamID, "user_id", r.UserID, "error", err)
		return err
	}
	slog.Info("saved result", "id", r.ID, "exam_id", r.ExamID, "user_id", r.UserID, "score", r.Score)
	return nil
}

// ResultsByUser returns the results recorded for one user.
func (s *Store) ResultsByUser(userID string) ([]model.ExamResult, error) {
	all, err := s.Results()
	if err != nil {
		return nil, err
	}
	var results []model.ExamResult
	for _, r := range all {
		if r.UserID == userID {
			results = append(results, r)
		}
	}
	return results, nil
}

// ResultByID returns a result by ID, or nil if none exists.
func (s *Store) ResultByID(id string) (*model.ExamResult, error) {
	all, err := s.Results()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, nil
}

// HasCompletedExam reports whether a result exists for the pair. It re-reads
// the collection on every call.
func (s *Store) HasCompletedExam(userID, examID string) (bool, error) {
	all, err := s.Results()
	if err != nil {
		return false, err
	}
	for _, r := range all {
		if r.UserID == userID && r.ExamID == examID {
			return true, nil
		}
	}
	return false, nil
}
