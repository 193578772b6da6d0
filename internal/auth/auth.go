// Package auth resolves credentials against the user collection and manages
// the current-user session for each login.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/store"
)

// AdminUsername is the one reserved identity that registers as an admin.
const AdminUsername = "Alyserag"

const (
	MinUsernameLen = 3
	MinPasswordLen = 4
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBadCredential     = errors.New("bad credential")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrUsernameTooShort  = errors.New("username too short")
	ErrPasswordTooShort  = errors.New("password too short")
	ErrMissingGrade      = errors.New("grade is required for students")
	ErrInvalidGrade      = errors.New("unknown grade")
)

// RoleFor classifies a username. Only AdminUsername is an admin.
func RoleFor(username string) model.Role {
	if username == AdminUsername {
		return model.RoleAdmin
	}
	return model.RoleStudent
}

// Service implements authentication and registration over the store.
type Service struct {
	store *store.Store
	cost  int
}

// New creates a Service hashing secrets at the given bcrypt cost
// (bcrypt.DefaultCost when zero).
func New(s *store.Store, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: s, cost: cost}
}

// Authenticate looks the trimmed username up exactly and checks the password.
func (s *Service) Authenticate(username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	user, err := s.store.UserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrBadCredential
	}
	return user, nil
}

// Register creates a new account. Surrounding spaces are not part of the
// username. The grade is ignored for the admin identity.
func (s *Service) Register(username, password, grade string) (*model.User, error) {
	username = strings.TrimSpace(username)
	existing, err := s.store.UserByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateUsername
	}
	if utf8.RuneCountInString(username) < MinUsernameLen {
		return nil, ErrUsernameTooShort
	}
	if strings.TrimSpace(password) == "" || utf8.RuneCountInString(password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}

	role := RoleFor(username)
	if role == model.RoleAdmin {
		grade = ""
	} else {
		if grade == "" {
			return nil, ErrMissingGrade
		}
		if !model.ValidGrade(grade) {
			return nil, ErrInvalidGrade
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  string(hash),
		Role:      role,
		Grade:     grade,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendUser(user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and makes the user current for a new session token.
func (s *Service) Login(username, password string) (model.AuthSession, error) {
	user, err := s.Authenticate(username, password)
	if err != nil {
		return model.AuthSession{}, err
	}
	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return s.store.CreateAuthSession(*user)
}

// SignUp registers and logs the new user in.
func (s *Service) SignUp(username, password, grade string) (model.AuthSession, error) {
	user, err := s.Register(username, password, grade)
	if err != nil {
		return model.AuthSession{}, err
	}
	return s.store.CreateAuthSession(*user)
}

// Resolve returns the live session for token, or nil.
func (s *Service) Resolve(token string) (*model.AuthSession, error) {
	return s.store.GetAuthSession(token)
}

// Logout clears the current user for token.
func (s *Service) Logout(token string) error {
	return s.store.DeleteAuthSession(token)
}
