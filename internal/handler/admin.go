package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manasetna/exams/internal/catalog"
	appI18n "github.com/manasetna/exams/internal/i18n"
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/review"
)

type createExamRequest struct {
	Name      string                  `json:"name"`
	Grade     string                  `json:"grade"`
	Questions []catalog.QuestionInput `json:"questions"`
}

type examResponse struct {
	Message string     `json:"message"`
	Exam    model.Exam `json:"exam"`
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var in createExamRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	exam, err := h.catalog.Create(*user, in.Name, in.Grade, in.Questions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, examResponse{
		Message: appI18n.T(r.Context(), "ExamCreated"),
		Exam:    *exam,
	})
}

type importResponse struct {
	Message string       `json:"message"`
	Exams   []model.Exam `json:"exams"`
}

// handleImportExams accepts an uploaded JSON file holding a list of exams.
func (h *Handler) handleImportExams(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, errBadRequest)
		return
	}
	file, header, err := r.FormFile("exams_file")
	if err != nil {
		writeError(w, r, errBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, errBadRequest)
		return
	}

	user := model.UserFromContext(r.Context())
	exams, err := h.catalog.Import(*user, header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{
		Message: appI18n.Tp(r.Context(), "ExamsImported", len(exams)),
		Exams:   exams,
	})
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(chi.URLParam(r, "examID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: appI18n.T(r.Context(), "ExamDeleted")})
}

type resultsResponse struct {
	Results []model.ExamResult `json:"results"`
	Stats   review.Stats       `json:"stats"`
}

// handleListResults serves the admin dashboard. Stats cover every result;
// the list honours the q, grade and sort query parameters.
func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.Results()
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filtered := review.Filter(all, review.Query{
		Search: q.Get("q"),
		Grade:  q.Get("grade"),
		Sort:   review.SortOrder(q.Get("sort")),
	})
	writeJSON(w, http.StatusOK, resultsResponse{
		Results: filtered,
		Stats:   review.ComputeStats(all),
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	exams, err := h.catalog.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.store.Results()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review.BuildDashboard(exams, results))
}
