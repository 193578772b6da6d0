package review

import (
	"slices"
	"strings"

	"github.com/manasetna/exams/internal/model"
)

// Stats summarizes a set of results for the admin dashboard.
type Stats struct {
	Count          int `json:"count"`
	Average        int `json:"average"`
	Highest        int `json:"highest"`
	Lowest         int `json:"lowest"`
	PassingPercent int `json:"passingPercent"`
}

// ComputeStats returns zeros for an empty slice.
func ComputeStats(results []model.ExamResult) Stats {
	if len(results) == 0 {
		return Stats{}
	}
	st := Stats{
		Count:   len(results),
		Highest: results[0].Score,
		Lowest:  results[0].Score,
	}
	sum, passing := 0, 0
	for _, r := range results {
		sum += r.Score
		st.Highest = max(st.Highest, r.Score)
		st.Lowest = min(st.Lowest, r.Score)
		if r.Passed() {
			passing++
		}
	}
	st.Average = roundDiv(sum, len(results))
	st.PassingPercent = roundDiv(passing*100, len(results))
	return st
}

// GradeCount is the number of exams authored for one grade.
type GradeCount struct {
	Grade string `json:"grade"`
	Exams int    `json:"exams"`
}

// Dashboard holds the admin quick figures.
type Dashboard struct {
	TotalExams   int          `json:"totalExams"`
	Participants int          `json:"participants"`
	TotalResults int          `json:"totalResults"`
	ExamsByGrade []GradeCount `json:"examsByGrade"`
	Stats        Stats        `json:"stats"`
}

// BuildDashboard counts exams per grade, in model.Grades order, and the
// distinct students with at least one result.
func BuildDashboard(exams []model.Exam, results []model.ExamResult) Dashboard {
	perGrade := make(map[string]int, len(model.Grades))
	for _, e := range exams {
		perGrade[e.Grade]++
	}
	byGrade := make([]GradeCount, len(model.Grades))
	for i, g := range model.Grades {
		byGrade[i] = GradeCount{Grade: g, Exams: perGrade[g]}
	}

	students := make(map[string]struct{}, len(results))
	for _, r := range results {
		students[r.UserID] = struct{}{}
	}

	return Dashboard{
		TotalExams:   len(exams),
		Participants: len(students),
		TotalResults: len(results),
		ExamsByGrade: byGrade,
		Stats:        ComputeStats(results),
	}
}

// Summary is what a student sees about their own history.
type Summary struct {
	Completed int `json:"completed"`
	Average   int `json:"average"`
}

func StudentSummary(results []model.ExamResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	sum := 0
	for _, r := range results {
		sum += r.Score
	}
	return Summary{Completed: len(results), Average: roundDiv(sum, len(results))}
}

// SortOrder selects the ordering Filter applies.
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByScore SortOrder = "score"
)

// Query narrows a result list. Empty fields match everything.
type Query struct {
	Search string
	Grade  string
	Sort   SortOrder
}

// Filter matches Search case-insensitively against username and exam name,
// keeps Grade, and sorts newest first or highest score first. The input is
// not modified.
func Filter(results []model.ExamResult, q Query) []model.ExamResult {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]model.ExamResult, 0, len(results))
	for _, r := range results {
		if q.Grade != "" && r.Grade != q.Grade {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Username), search) &&
			!strings.Contains(strings.ToLower(r.ExamName), search) {
			continue
		}
		out = append(out, r)
	}

	if q.Sort == SortByScore {
		slices.SortStableFunc(out, func(a, b model.ExamResult) int { return b.Score - a.Score })
	} else {
		slices.SortStableFunc(out, func(a, b model.ExamResult) int { return b.CompletedAt.Compare(a.CompletedAt) })
	}
	return out
}

// roundDiv rounds a/b half up for non-negative a and positive b.
func roundDiv(a, b int) int {
	return (2*a + b) / (2 * b)
}
