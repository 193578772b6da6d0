// Package review turns a recorded result back into something a student or
// admin can read: per-question breakdowns, score bands and dashboard figures.
package review

import (
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/session"
)

// Band is the qualitative grade shown next to a score.
type Band string

const (
	BandExcellent  Band = "excellent"
	BandVeryGood   Band = "very_good"
	BandGood       Band = "good"
	BandNeedsStudy Band = "needs_study"
)

// MessageID returns the localization key for the band.
func (b Band) MessageID() string {
	switch b {
	case BandExcellent:
		return "BandExcellent"
	case BandVeryGood:
		return "BandVeryGood"
	case BandGood:
		return "BandGood"
	}
	return "BandNeedsStudy"
}

// BandFor places a score on the 90/75/50 percent ladder.
func BandFor(score int) Band {
	pct := score * 100
	switch {
	case pct >= 90*model.MaxScore:
		return BandExcellent
	case pct >= 75*model.MaxScore:
		return BandVeryGood
	case pct >= 50*model.MaxScore:
		return BandGood
	}
	return BandNeedsStudy
}

// Option is one choice as shown in a review.
type Option struct {
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Selected bool   `json:"selected"`
}

// Item pairs a question with what the student chose.
type Item struct {
	Index       int      `json:"index"`
	Text        string   `json:"text"`
	Options     []Option `json:"options"`
	Answered    bool     `json:"answered"`
	Correct     bool     `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

// Review is the read-only view of one result.
type Review struct {
	Result       model.ExamResult `json:"result"`
	Band         Band             `json:"band"`
	Passed       bool             `json:"passed"`
	CorrectCount int              `json:"correctCount"`
	// HasExam is false when the exam was deleted after the attempt; only the
	// denormalized result fields are available then.
	HasExam bool `json:"hasExam"`
	// HasAnswers is false once the session's answers are gone.
	HasAnswers bool   `json:"hasAnswers"`
	Items      []Item `json:"items,omitempty"`
}

// Build assembles a review. exam and answers are both optional.
func Build(result model.ExamResult, exam *model.Exam, answers map[int]int) Review {
	r := Review{
		Result:       result,
		Band:         BandFor(result.Score),
		Passed:       result.Passed(),
		CorrectCount: estimateCorrect(result.Score, result.TotalQuestions),
		HasExam:      exam != nil,
		HasAnswers:   answers != nil,
	}
	if exam == nil {
		return r
	}

	if answers != nil {
		r.CorrectCount = session.CorrectCount(exam.Questions, answers)
	}
	r.Items = make([]Item, len(exam.Questions))
	for i, q := range exam.Questions {
		selected, answered := answers[i]
		item := Item{
			Index:    i,
			Text:     q.Text,
			Options:  make([]Option, len(q.Options)),
			Answered: answered,
			Correct:  answered && selected == q.CorrectAnswer,
		}
		for j, text := range q.Options {
			item.Options[j] = Option{
				Text:     text,
				Correct:  j == q.CorrectAnswer,
				Selected: answered && j == selected,
			}
		}
		r.Items[i] = item
	}
	return r
}

// Missed returns the items the student answered wrongly or skipped.
func (r Review) Missed() []*Item {
	var missed []*Item
	for i := range r.Items {
		if !r.Items[i].Correct {
			missed = append(missed, &r.Items[i])
		}
	}
	return missed
}

// estimateCorrect recovers round(score*n/MaxScore) when the answers are gone.
func estimateCorrect(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (2*score*total + model.MaxScore) / (2 * model.MaxScore)
}
