package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/manasetna/exams/internal/catalog"
	appI18n "github.com/manasetna/exams/internal/i18n"
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/review"
	"github.com/manasetna/exams/internal/session"
)

// examSummary is what a student sees in the exam list: no questions, so no key.
type examSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Grade         string    `json:"grade"`
	QuestionCount int       `json:"questionCount"`
	DurationSecs  int       `json:"durationSeconds"`
	CreatedAt     time.Time `json:"createdAt"`
	Completed     bool      `json:"completed"`
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if user.IsAdmin() {
		exams, err := h.catalog.List()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, exams)
		return
	}

	exams, err := h.catalog.ListByGrade(user.Grade)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.store.ResultsByUser(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	done := make(map[string]bool, len(results))
	for _, res := range results {
		done[res.ExamID] = true
	}

	out := make([]examSummary, 0, len(exams))
	for _, e := range exams {
		out = append(out, examSummary{
			ID:            e.ID,
			Name:          e.Name,
			Grade:         e.Grade,
			QuestionCount: len(e.Questions),
			DurationSecs:  int(model.ExamDuration / time.Second),
			CreatedAt:     e.CreatedAt,
			Completed:     done[e.ID],
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type questionView struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// sessionView renders a live session without the answer key.
type sessionView struct {
	session.State
	ExamName   string            `json:"examName"`
	Total      int               `json:"total"`
	Answered   int               `json:"answered"`
	Unanswered string            `json:"unansweredMessage,omitempty"`
	Questions  []questionView    `json:"questions"`
	Result     *model.ExamResult `json:"result,omitempty"`
}

func (h *Handler) renderSession(w http.ResponseWriter, r *http.Request, status int, s *session.Session) {
	exam := s.Exam()
	st := s.State()
	v := sessionView{
		State:     st,
		ExamName:  exam.Name,
		Total:     len(exam.Questions),
		Answered:  len(st.Answers),
		Questions: make([]questionView, len(exam.Questions)),
	}
	for i, q := range exam.Questions {
		v.Questions[i] = questionView{Text: q.Text, Options: q.Options}
	}
	if left := v.Total - v.Answered; left > 0 && st.Phase == session.PhaseActive {
		v.Unanswered = appI18n.Tp(r.Context(), "QuestionsRemaining", left)
	}
	if res, ok := s.Result(); ok {
		v.Result = &res
	}
	writeJSON(w, status, v)
}

// sessionFor returns the caller's session named in the URL. Sessions of other
// users are reported as missing.
func (h *Handler) sessionFor(r *http.Request) (*session.Session, error) {
	s, err := h.engine.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, err
	}
	if s.User().ID != model.UserFromContext(r.Context()).ID {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	s, err := h.engine.Start(*user, chi.URLParam(r, "examID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.renderSession(w, r, http.StatusCreated, s)
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.renderSession(w, r, http.StatusOK, s)
}

type answerRequest struct {
	Question *int `json:"question"`
	Option   *int `json:"option"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in answerRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Question == nil || in.Option == nil {
		writeError(w, r, errBadRequest)
		return
	}
	if err := s.SetAnswer(*in.Question, *in.Option); err != nil {
		writeError(w, r, err)
		return
	}
	h.renderSession(w, r, http.StatusOK, s)
}

type gotoRequest struct {
	Index *int `json:"index"`
}

func (h *Handler) handleGoTo(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in gotoRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Index == nil {
		writeError(w, r, errBadRequest)
		return
	}
	if err := s.GoTo(*in.Index); err != nil {
		writeError(w, r, err)
		return
	}
	h.renderSession(w, r, http.StatusOK, s)
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*session.Session).Next)
}

func (h *Handler) handlePrevious(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*session.Session).Previous)
}

func (h *Handler) navigate(w http.ResponseWriter, r *http.Request, move func(*session.Session) error) {
	s, err := h.sessionFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := move(s); err != nil {
		writeError(w, r, err)
		return
	}
	h.renderSession(w, r, http.StatusOK, s)
}

// reviewView adds the localized band label to a review.
type reviewView struct {
	review.Review
	BandLabel string `json:"bandLabel"`
}

func newReviewView(r *http.Request, rev review.Review) reviewView {
	return reviewView{Review: rev, BandLabel: appI18n.T(r.Context(), rev.Band.MessageID())}
}

type submitResponse struct {
	Message string     `json:"message"`
	Review  reviewView `json:"review"`
}

// handleSubmit is idempotent: after the first submit, or after the timer
// fired, it returns the recorded result again.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.Submit()
	if err != nil {
		writeError(w, r, err)
		return
	}
	exam := s.Exam()
	writeJSON(w, http.StatusOK, submitResponse{
		Message: appI18n.Td(r.Context(), "ExamSubmitted", map[string]any{"Score": result.Score}),
		Review:  newReviewView(r, review.Build(result, &exam, s.Answers())),
	})
}

func (h *Handler) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessionFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Cancel(); err != nil {
		writeError(w, r, err)
		return
	}
	h.engine.Discard(s.ID())
	writeJSON(w, http.StatusOK, messageResponse{Message: appI18n.T(r.Context(), "SessionCancelled")})
}

type myResultsResponse struct {
	Results []model.ExamResult `json:"results"`
	Summary review.Summary     `json:"summary"`
}

func (h *Handler) handleMyResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	results, err := h.store.ResultsByUser(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, myResultsResponse{
		Results: review.Filter(results, review.Query{Sort: review.SortByDate}),
		Summary: review.StudentSummary(results),
	})
}

// handleReview serves a result with as much detail as is still available.
// Students may only read their own results. With explain=true and a model
// configured, missed questions carry a short explanation.
func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	result, err := h.store.ResultByID(chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result == nil || (!user.IsAdmin() && result.UserID != user.ID) {
		writeError(w, r, errResultNotFound)
		return
	}

	exam, err := h.catalog.GetByID(result.ExamID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		writeError(w, r, err)
		return
	}
	answers, _ := h.engine.AnswersForResult(result.ID)

	rev := review.Build(*result, exam, answers)
	if h.llm != nil && r.URL.Query().Get("explain") == "true" && rev.HasAnswers {
		h.llm.ExplainMissed(r.Context(), &rev, appI18n.Lang(r.Context()))
	}
	writeJSON(w, http.StatusOK, newReviewView(r, rev))
}
