package model

import (
	"context"
	"slices"
	"time"
)

// Role represents a user's access level.
type Role string

const (
	// RoleStudent takes exams for a single grade.
	RoleStudent Role = "student"
	// RoleAdmin authors exams and reads every result.
	RoleAdmin Role = "admin"
)

// Policy constants shared by the session engine and reporting.
const (
	// ExamDuration is the fixed countdown for every attempt.
	ExamDuration = 900 * time.Second
	// MaxScore is the top of the scoring scale regardless of question count.
	MaxScore = 20
	// PassingScore is the lowest passing score on the MaxScore scale.
	PassingScore = 10
	// OptionsPerQuestion is the number of choices every question carries.
	OptionsPerQuestion = 4
)

// Grades is the fixed list of school years an exam can target.
var Grades = []string{
	"الصف الرابع الابتدائي",
	"الصف الخامس الابتدائي",
	"الصف السادس الابتدائي",
	"الصف الأول الإعدادي",
	"الصف الثاني الإعدادي",
	"الصف الثالث الإعدادي",
	"الصف الأول الثانوي",
	"الصف الثاني الثانوي",
	"الصف الثالث الثانوي",
}

// ValidGrade reports whether g is one of Grades.
func ValidGrade(g string) bool {
	return slices.Contains(Grades, g)
}

// User represents a registered account. Password holds the bcrypt hash of the
// secret, never the secret itself.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Role      Role      `json:"role"`
	Grade     string    `json:"grade,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user authors exams.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Question is one multiple-choice item. CorrectAnswer indexes Options.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Exam is an ordered set of questions for one grade.
type Exam struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Grade     string     `json:"grade"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy"`
}

// ExamResult is the immutable record of one completed attempt. ExamName,
// Username and Grade are snapshots taken at completion time.
type ExamResult struct {
	ID             string    `json:"id"`
	ExamID         string    `json:"examId"`
	ExamName       string    `json:"examName"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	Grade          string    `json:"grade"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Passed reports whether the result meets PassingScore.
func (r ExamResult) Passed() bool {
	return r.Score >= PassingScore
}

// AuthSession binds a login token to the user it resolved to.
type AuthSession struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Theme is a user's display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type tokenCtxKey struct{}

// ContextWithToken stores the auth session token in context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// TokenFromContext retrieves the auth session token from context.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenCtxKey{}).(string)
	return t
}
