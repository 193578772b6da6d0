package handler

import (
	"log/slog"
	"net/http"
	"time"

	appI18n "github.com/manasetna/exams/internal/i18n"
	"github.com/manasetna/exams/internal/model"
)

const sessionCookieName = "session"

// requireAuth resolves the session cookie to a user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, r, errUnauthorized)
			return
		}

		authSess, err := h.auth.Resolve(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			writeError(w, r, err)
			return
		}
		if authSess == nil {
			h.clearSessionCookie(w)
			writeError(w, r, errUnauthorized)
			return
		}

		user := authSess.User
		ctx := model.ContextWithUser(r.Context(), &user)
		ctx = model.ContextWithToken(ctx, authSess.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, r, errUnauthorized)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, errForbidden)
		})
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sess model.AuthSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Grade    string `json:"grade"`
}

// userView is a User without the password hash.
type userView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      model.Role `json:"role"`
	Grade     string     `json:"grade,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func newUserView(u model.User) userView {
	return userView{ID: u.ID, Username: u.Username, Role: u.Role, Grade: u.Grade, CreatedAt: u.CreatedAt}
}

type authResponse struct {
	Message string      `json:"message"`
	User    userView    `json:"user"`
	Theme   model.Theme `json:"theme"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.auth.SignUp(in.Username, in.Password, in.Grade)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("registered user", "user_id", sess.User.ID, "role", sess.User.Role)
	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, authResponse{
		Message: appI18n.T(r.Context(), "RegisterSuccess"),
		User:    newUserView(sess.User),
		Theme:   model.ThemeLight,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.auth.Login(in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	theme, err := h.store.Theme(sess.User.ID)
	if err != nil {
		slog.Warn("failed to read theme", "user_id", sess.User.ID, "error", err)
		theme = model.ThemeLight
	}
	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, authResponse{
		Message: appI18n.T(r.Context(), "LoginSuccess"),
		User:    newUserView(sess.User),
		Theme:   theme,
	})
}

// handleLogout ends the login and abandons any exam the user still has open.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if n := h.engine.DiscardUser(user.ID); n > 0 {
		slog.Info("discarded exam sessions on logout", "user_id", user.ID, "count", n)
	}
	if err := h.auth.Logout(model.TokenFromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: appI18n.T(r.Context(), "LoggedOut")})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserView(*model.UserFromContext(r.Context())))
}

type themeRequest struct {
	Theme model.Theme `json:"theme"`
}

func (h *Handler) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	theme, err := h.store.Theme(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themeRequest{Theme: theme})
}

func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var in themeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Theme != model.ThemeLight && in.Theme != model.ThemeDark {
		writeError(w, r, errInvalidTheme)
		return
	}
	user := model.UserFromContext(r.Context())
	if err := h.store.SetTheme(user.ID, in.Theme); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (h *Handler) handleGrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Grades)
}
