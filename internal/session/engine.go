// Package session runs timed exam attempts: navigation, answer capture, the
// countdown with auto-submit, scoring and the single result write.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manasetna/exams/internal/catalog"
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/store"
)

var (
	ErrExamNotFound     = catalog.ErrNotFound
	ErrAlreadyCompleted = errors.New("exam already completed")
	ErrForbidden        = errors.New("only students can take exams")
	ErrGradeMismatch    = errors.New("exam is for a different grade")
	ErrNotActive        = errors.New("session is not active")
	ErrCancelled        = errors.New("session was cancelled")
	ErrInvalidAnswer    = errors.New("question or option out of range")
	ErrSessionNotFound  = errors.New("session not found")
	ErrClosed           = errors.New("engine is closed")
)

// Engine starts sessions and keeps the live ones in memory.
type Engine struct {
	store    *store.Store
	catalog  *catalog.Catalog
	duration time.Duration
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithDuration overrides the countdown length (model.ExamDuration by default).
func WithDuration(d time.Duration) Option {
	return func(e *Engine) { e.duration = d }
}

// WithTickInterval sets the real time between countdown ticks. Each tick
// still counts as one second of exam time.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// New creates an Engine writing results through s.
func New(s *store.Store, c *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		catalog:  c,
		duration: model.ExamDuration,
		interval: time.Second,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a session for user on exam examID and starts its countdown.
// It refuses exams that are missing or already completed by the user.
func (e *Engine) Start(user model.User, examID string) (*Session, error) {
	if user.Role != model.RoleStudent {
		return nil, ErrForbidden
	}
	exam, err := e.catalog.GetByID(examID)
	if err != nil {
		return nil, err
	}
	if len(exam.Questions) == 0 {
		return nil, catalog.ErrNoQuestions
	}
	if exam.Grade != user.Grade {
		return nil, ErrGradeMismatch
	}
	done, err := e.store.HasCompletedExam(user.ID, exam.ID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrAlreadyCompleted
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		exam:      *exam,
		user:      user,
		startedAt: e.now().UTC(),
		engine:    e,
		phase:     PhaseActive,
		answers:   make(map[int]int),
		remaining: int(e.duration / time.Second),
		done:      make(chan struct{}),
		stopTimer: cancel,
		timerDone: make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	e.sessions[s.id] = s
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer close(s.timerDone)
		e.countdown(ctx, s)
	}()

	slog.Info("exam session started", "session_id", s.id, "exam_id", exam.ID, "user_id", user.ID,
		"questions", len(exam.Questions), "seconds", s.remaining)
	return s, nil
}

func (e *Engine) countdown(ctx context.Context, s *Session) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Tick() {
				continue
			}
			slog.Info("exam time is up, submitting", "session_id", s.id)
			if _, err := s.Submit(); err != nil && !errors.Is(err, ErrCancelled) {
				slog.Error("auto-submit failed", "session_id", s.id, "error", err)
			}
			return
		}
	}
}

// record scores answers and appends the result. The completion check is
// repeated here; a second session for the same pair still writes, which is
// logged rather than prevented.
func (e *Engine) record(s *Session, answers map[int]int) (model.ExamResult, error) {
	result := model.ExamResult{
		ID:             uuid.NewString(),
		ExamID:         s.exam.ID,
		ExamName:       s.exam.Name,
		UserID:         s.user.ID,
		Username:       s.user.Username,
		Grade:          s.exam.Grade,
		Score:          Score(s.exam.Questions, answers),
		TotalQuestions: len(s.exam.Questions),
		CompletedAt:    e.now().UTC(),
	}

	dup, err := e.store.HasCompletedExam(s.user.ID, s.exam.ID)
	if err != nil {
		return model.ExamResult{}, err
	}
	if dup {
		slog.Warn("recording second result for the same exam", "session_id", s.id,
			"exam_id", s.exam.ID, "user_id", s.user.ID)
	}
	if err := e.store.AppendResult(result); err != nil {
		return model.ExamResult{}, err
	}
	return result, nil
}

// Get returns a live or recently completed session.
func (e *Engine) Get(id string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Discard forgets a session, cancelling it first if it is still active.
// The answers of a completed session are gone afterwards.
func (e *Engine) Discard(id string) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if ok && s.Phase() == PhaseActive {
		_ = s.Cancel()
	}
}

// AnswersForResult returns the answers behind a recorded result while the
// session that produced it is still held. ok is false once it is discarded.
func (e *Engine) AnswersForResult(resultID string) (answers map[int]int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.sessions {
		if r, done := s.Result(); done && r.ID == resultID {
			return s.Answers(), true
		}
	}
	return nil, false
}

// DiscardUser forgets every session of one user, cancelling the active ones.
func (e *Engine) DiscardUser(userID string) int {
	e.mu.Lock()
	var ids []string
	for id, s := range e.sessions {
		if s.user.ID == userID {
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.Discard(id)
	}
	return len(ids)
}

// Close cancels every active session and waits for all countdowns to stop.
// Sessions caught mid-submit keep their outcome but lose their countdown.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.sessions = make(map[string]*Session)
	e.mu.Unlock()

	for _, s := range sessions {
		s.stopTimer()
		if err := s.Cancel(); err != nil && !errors.Is(err, ErrNotActive) {
			slog.Warn("cancel session on close", "session_id", s.id, "error", err)
		}
	}
	e.wg.Wait()
}
