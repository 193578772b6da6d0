package session

import "github.com/manasetna/exams/internal/model"

// CorrectCount counts the questions whose captured answer equals the key.
// Unanswered questions and stray indices count as wrong.
func CorrectCount(questions []model.Question, answers map[int]int) int {
	correct := 0
	for i, q := range questions {
		if opt, ok := answers[i]; ok && opt == q.CorrectAnswer {
			correct++
		}
	}
	return correct
}

// Score maps the share of correct answers onto 0..model.MaxScore, rounding
// half up. The arithmetic is exact: round(c/n*M) == floor((2cM + n) / 2n).
func Score(questions []model.Question, answers map[int]int) int {
	total := len(questions)
	if total == 0 {
		return 0
	}
	correct := CorrectCount(questions, answers)
	return (2*correct*model.MaxScore + total) / (2 * total)
}
