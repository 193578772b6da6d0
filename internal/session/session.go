package session

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/manasetna/exams/internal/model"
)

// Phase is the coarse lifecycle stage of a session.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseSubmitting
	PhaseCompleted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseSubmitting:
		return "submitting"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for _, c := range []Phase{PhaseActive, PhaseSubmitting, PhaseCompleted, PhaseCancelled} {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// State is a point-in-time copy of a session.
type State struct {
	SessionID        string      `json:"sessionId"`
	ExamID           string      `json:"examId"`
	Position         int         `json:"position"`
	Answers          map[int]int `json:"answers"`
	RemainingSeconds int         `json:"remainingSeconds"`
	Phase            Phase       `json:"phase"`
	StartedAt        time.Time   `json:"startedAt"`
}

// Session is one student's live attempt at one exam. All methods are safe
// for concurrent use by request handlers and the countdown goroutine.
type Session struct {
	id        string
	exam      model.Exam
	user      model.User
	startedAt time.Time
	engine    *Engine

	mu        sync.Mutex
	phase     Phase
	position  int
	answers   map[int]int
	remaining int
	result    *model.ExamResult
	done      chan struct{}

	// submitMu serializes the scoring/write path so a second submit observes
	// the outcome of the first.
	submitMu  sync.Mutex
	stopTimer context.CancelFunc
	timerDone chan struct{}
}

func (s *Session) ID() string { return s.id }

// Exam returns the exam being taken, answer key included.
func (s *Session) Exam() model.Exam { return s.exam }

func (s *Session) User() model.User { return s.user }

// Done is closed once the session completes or is cancelled.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SessionID:        s.id,
		ExamID:           s.exam.ID,
		Position:         s.position,
		Answers:          maps.Clone(s.answers),
		RemainingSeconds: s.remaining,
		Phase:            s.phase,
		StartedAt:        s.startedAt,
	}
}

// Answers returns a copy of the captured answers, keyed by question index.
func (s *Session) Answers() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.answers)
}

// Result returns the recorded result once the session has completed.
func (s *Session) Result() (model.ExamResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.ExamResult{}, false
	}
	return *s.result, true
}

// GoTo moves to question i, clamped to the exam bounds.
func (s *Session) GoTo(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return ErrNotActive
	}
	s.position = max(0, min(i, len(s.exam.Questions)-1))
	return nil
}

// Next moves forward one question, staying on the last.
func (s *Session) Next() error {
	s.mu.Lock()
	i := s.position + 1
	s.mu.Unlock()
	return s.GoTo(i)
}

// Previous moves back one question, staying on the first.
func (s *Session) Previous() error {
	s.mu.Lock()
	i := s.position - 1
	s.mu.Unlock()
	return s.GoTo(i)
}

// SetAnswer records option for question, replacing any earlier choice. It
// never reveals whether the choice is correct.
func (s *Session) SetAnswer(question, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive || s.remaining <= 0 {
		return ErrNotActive
	}
	if question < 0 || question >= len(s.exam.Questions) {
		return ErrInvalidAnswer
	}
	if option < 0 || option >= len(s.exam.Questions[question].Options) {
		return ErrInvalidAnswer
	}
	s.answers[question] = option
	return nil
}

// Tick takes one second off the clock. It reports true exactly when this
// tick ran the clock out on an active session.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive || s.remaining <= 0 {
		return false
	}
	s.remaining--
	return s.remaining == 0
}

// Submit scores the captured answers and records the result. Only an active
// session reaches the write path; once completed, Submit returns the recorded
// result again without writing. A failed write leaves the session active so
// the student can retry.
func (s *Session) Submit() (model.ExamResult, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	switch s.phase {
	case PhaseCompleted:
		r := *s.result
		s.mu.Unlock()
		return r, nil
	case PhaseCancelled:
		s.mu.Unlock()
		return model.ExamResult{}, ErrCancelled
	}
	s.phase = PhaseSubmitting
	answers := maps.Clone(s.answers)
	s.mu.Unlock()

	result, err := s.engine.record(s, answers)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.phase = PhaseActive
		return model.ExamResult{}, err
	}
	s.phase = PhaseCompleted
	s.result = &result
	close(s.done)
	s.stopTimer()
	return result, nil
}

// Cancel abandons an active session without recording anything. It returns
// after the countdown goroutine has exited, so no late submit can follow.
func (s *Session) Cancel() error {
	s.mu.Lock()
	switch s.phase {
	case PhaseCancelled:
		s.mu.Unlock()
		return nil
	case PhaseActive:
	default:
		s.mu.Unlock()
		return ErrNotActive
	}
	s.phase = PhaseCancelled
	close(s.done)
	s.mu.Unlock()

	s.stopTimer()
	<-s.timerDone
	return nil
}
