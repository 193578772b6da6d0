package model

import "time"

// ResultsExport is the top-level JSON structure written by the export command.
type ResultsExport struct {
	ExportedAt  time.Time    `json:"exported_at"`
	Grade       string       `json:"grade,omitempty"`
	MaxScore    int          `json:"max_score"`
	PassingMark int          `json:"passing_score"`
	Results     []ExamResult `json:"results"`
}
