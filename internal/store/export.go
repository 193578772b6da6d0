package store

import (
	"fmt"
	"time"

	"github.com/manasetna/exams/internal/model"
)

// ExportResults builds the export document for all results, optionally
// restricted to one grade.
func (s *Store) ExportResults(grade string) (model.ResultsExport, error) {
	all, err := s.Results()
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}

	results := make([]model.ExamResult, 0, len(all))
	for _, r := range all {
		if grade != "" && r.Grade != grade {
			continue
		}
		results = append(results, r)
	}

	return model.ResultsExport{
		ExportedAt:  time.Now().UTC(),
		Grade:       grade,
		MaxScore:    model.MaxScore,
		PassingMark: model.PassingScore,
		Results:     results,
	}, nil
}
