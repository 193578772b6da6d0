package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/manasetna/exams/internal/auth"
	"github.com/manasetna/exams/internal/catalog"
	appI18n "github.com/manasetna/exams/internal/i18n"
	"github.com/manasetna/exams/internal/llm"
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/session"
	"github.com/manasetna/exams/internal/store"
)

// Config holds the HTTP-facing settings.
type Config struct {
	SecureCookies bool
	CORSOrigins   []string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	auth    *auth.Service
	catalog *catalog.Catalog
	engine  *session.Engine
	llm     *llm.Client
	config  Config
}

// New creates a new Handler. l may be nil when explanations are disabled.
func New(s *store.Store, a *auth.Service, c *catalog.Catalog, e *session.Engine, l *llm.Client, cfg Config) *Handler {
	return &Handler{store: s, auth: a, catalog: c, engine: e, llm: l, config: cfg}
}

// Router builds the full middleware stack with the API mounted under /api.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware)
	r.Route("/api", h.Routes)
	return r
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Get("/grades", h.handleGrades)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Get("/theme", h.handleGetTheme)
		r.Post("/theme", h.handleSetTheme)
		r.Get("/exams", h.handleListExams)
		r.Get("/results/{resultID}/review", h.handleReview)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleAdmin))
			r.Post("/exams", h.handleCreateExam)
			r.Post("/exams/import", h.handleImportExams)
			r.Delete("/exams/{examID}", h.handleDeleteExam)
			r.Get("/results", h.handleListResults)
			r.Get("/dashboard", h.handleDashboard)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.RoleStudent))
			r.Get("/results/mine", h.handleMyResults)
			r.Post("/exams/{examID}/sessions", h.handleStartSession)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Get("/", h.handleSessionState)
				r.Delete("/", h.handleCancelSession)
				r.Post("/answer", h.handleAnswer)
				r.Post("/goto", h.handleGoTo)
				r.Post("/next", h.handleNext)
				r.Post("/previous", h.handlePrevious)
				r.Post("/submit", h.handleSubmit)
			})
		})
	})
}

var (
	errBadRequest     = errors.New("bad request")
	errUnauthorized   = errors.New("unauthorized")
	errForbidden      = errors.New("forbidden")
	errResultNotFound = errors.New("result not found")
	errInvalidTheme   = errors.New("invalid theme")
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

// writeError maps err onto a status code and a localized message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	var data map[string]any
	var qe *catalog.QuestionError
	if errors.As(err, &qe) {
		data = map[string]any{"N": qe.N}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: appI18n.Td(r.Context(), code, data), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "BadRequest"
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, errForbidden), errors.Is(err, catalog.ErrForbidden), errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, errResultNotFound):
		return http.StatusNotFound, "ResultNotFound"
	case errors.Is(err, errInvalidTheme):
		return http.StatusBadRequest, "InvalidTheme"

	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusUnauthorized, "UserNotFound"
	case errors.Is(err, auth.ErrBadCredential):
		return http.StatusUnauthorized, "BadCredential"
	case errors.Is(err, auth.ErrDuplicateUsername):
		return http.StatusConflict, "DuplicateUsername"
	case errors.Is(err, auth.ErrUsernameTooShort):
		return http.StatusBadRequest, "UsernameTooShort"
	case errors.Is(err, auth.ErrPasswordTooShort):
		return http.StatusBadRequest, "PasswordTooShort"
	case errors.Is(err, auth.ErrMissingGrade):
		return http.StatusBadRequest, "MissingGrade"
	case errors.Is(err, auth.ErrInvalidGrade), errors.Is(err, catalog.ErrInvalidGrade):
		return http.StatusBadRequest, "InvalidGrade"

	case errors.Is(err, catalog.ErrEmptyName):
		return http.StatusBadRequest, "EmptyName"
	case errors.Is(err, catalog.ErrNoQuestions):
		return http.StatusBadRequest, "NoQuestions"
	case errors.Is(err, catalog.ErrIncompleteQuestion):
		return http.StatusBadRequest, "IncompleteQuestion"
	case errors.Is(err, catalog.ErrInvalidAnswerKey):
		return http.StatusBadRequest, "InvalidAnswerKey"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "ExamNotFound"
	case errors.Is(err, catalog.ErrAlreadyImported):
		return http.StatusConflict, "AlreadyImported"
	case errors.Is(err, catalog.ErrInvalidImport):
		return http.StatusBadRequest, "InvalidImport"

	case errors.Is(err, session.ErrAlreadyCompleted):
		return http.StatusConflict, "AlreadyCompleted"
	case errors.Is(err, session.ErrGradeMismatch):
		return http.StatusForbidden, "GradeMismatch"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "SessionNotFound"
	case errors.Is(err, session.ErrNotActive):
		return http.StatusConflict, "SessionClosed"
	case errors.Is(err, session.ErrCancelled):
		return http.StatusConflict, "SessionCancelled"
	case errors.Is(err, session.ErrInvalidAnswer):
		return http.StatusBadRequest, "InvalidAnswer"

	case errors.Is(err, store.ErrUnavailable), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, "StorageUnavailable"
	}
	return http.StatusInternalServerError, "InternalError"
}
