package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/manasetna/exams/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testExam(id, grade string, createdAt time.Time) model.Exam {
	return model.Exam{
		ID:    id,
		Name:  "Exam " + id,
		Grade: grade,
		Questions: []model.Question{
			{ID: id + "-q1", Text: "2+2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: 1},
		},
		CreatedAt: createdAt,
		CreatedBy: "admin-1",
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	u := model.User{ID: "u1", Username: "Sara", Password: "hash", Role: model.RoleStudent, Grade: model.Grades[0]}
	if err := s.AppendUser(u); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}

	got, err := s.UserByUsername("Sara")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("expected user u1, got %+v", got)
	}

	// Lookup is case-sensitive.
	got, err = s.UserByUsername("sara")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for different case, got %+v", got)
	}

	got, err = s.UserByID("u1")
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if got == nil || got.Grade != model.Grades[0] {
		t.Errorf("expected grade %q, got %+v", model.Grades[0], got)
	}

	got, _ = s.UserByID("missing")
	if got != nil {
		t.Errorf("expected nil for missing id, got %+v", got)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	// Insert out of createdAt order; List must not reorder.
	for i, id := range []string{"c", "a", "b"} {
		if err := s.AppendExam(testExam(id, model.Grades[0], now.Add(-time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("AppendExam: %v", err)
		}
	}

	exams, err := s.Exams()
	if err != nil {
		t.Fatalf("Exams: %v", err)
	}
	if len(exams) != 3 {
		t.Fatalf("expected 3 exams, got %d", len(exams))
	}
	if exams[0].ID != "c" || exams[1].ID != "a" || exams[2].ID != "b" {
		t.Errorf("expected [c a b], got [%s %s %s]", exams[0].ID, exams[1].ID, exams[2].ID)
	}
	if len(exams[0].Questions) != 1 || exams[0].Questions[0].CorrectAnswer != 1 {
		t.Errorf("questions not round-tripped: %+v", exams[0].Questions)
	}
}

func TestReplaceExams(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	for _, id := range []string{"e1", "e2", "e3"} {
		if err := s.AppendExam(testExam(id, model.Grades[1], now)); err != nil {
			t.Fatalf("AppendExam: %v", err)
		}
	}

	exams, _ := s.Exams()
	kept := []model.Exam{exams[0], exams[2]}
	if err := s.ReplaceExams(kept); err != nil {
		t.Fatalf("ReplaceExams: %v", err)
	}

	exams, err := s.Exams()
	if err != nil {
		t.Fatalf("Exams: %v", err)
	}
	if len(exams) != 2 || exams[0].ID != "e1" || exams[1].ID != "e3" {
		t.Errorf("expected [e1 e3], got %+v", exams)
	}

	got, _ := s.ExamByID("e2")
	if got != nil {
		t.Errorf("expected e2 to be gone, got %+v", got)
	}
}

func TestResults(t *testing.T) {
	s := newTestStore(t)

	done, err := s.HasCompletedExam("u1", "e1")
	if err != nil {
		t.Fatalf("HasCompletedExam: %v", err)
	}
	if done {
		t.Fatal("expected no completion on empty store")
	}

	r := model.ExamResult{ID: "r1", ExamID: "e1", ExamName: "Math", UserID: "u1", Username: "Sara", Score: 14, TotalQuestions: 3}
	if err := s.AppendResult(r); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	if err := s.AppendResult(model.ExamResult{ID: "r2", ExamID: "e1", UserID: "u2", Score: 3}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}

	done, _ = s.HasCompletedExam("u1", "e1")
	if !done {
		t.Error("expected u1/e1 to be completed")
	}
	done, _ = s.HasCompletedExam("u1", "e2")
	if done {
		t.Error("expected u1/e2 to be open")
	}

	mine, err := s.ResultsByUser("u1")
	if err != nil {
		t.Fatalf("ResultsByUser: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "r1" {
		t.Errorf("expected [r1], got %+v", mine)
	}

	got, _ := s.ResultByID("r2")
	if got == nil || got.UserID != "u2" {
		t.Errorf("expected r2 for u2, got %+v", got)
	}
}

func TestCorruptRecordIsSkipped(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendResult(model.ExamResult{ID: "r1", ExamID: "e1", UserID: "u1"}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	if _, err := s.db.Exec(`INSERT INTO records (collection, body) VALUES (?, ?)`, ResultsCollection, "{not json"); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	results, err := s.Results()
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 1 || results[0].ID != "r1" {
		t.Errorf("expected only r1, got %+v", results)
	}
}

func TestSlots(t *testing.T) {
	s := newTestStore(t)

	var v string
	ok, err := s.GetSlot("missing", &v)
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if ok {
		t.Error("expected empty slot")
	}

	if err := s.SetSlot("k", "hello"); err != nil {
		t.Fatalf("SetSlot: %v", err)
	}
	ok, _ = s.GetSlot("k", &v)
	if !ok || v != "hello" {
		t.Errorf("expected 'hello', got %q (ok=%v)", v, ok)
	}

	if err := s.SetSlot("k", "world"); err != nil {
		t.Fatalf("SetSlot update: %v", err)
	}
	ok, _ = s.GetSlot("k", &v)
	if !ok || v != "world" {
		t.Errorf("expected 'world', got %q", v)
	}

	if err := s.SetSlot("k", nil); err != nil {
		t.Fatalf("SetSlot clear: %v", err)
	}
	ok, _ = s.GetSlot("k", &v)
	if ok {
		t.Error("expected cleared slot")
	}

	// Undecodable values read as empty.
	if _, err := s.db.Exec(`INSERT INTO slots (key, value) VALUES ('bad', '{oops')`); err != nil {
		t.Fatalf("insert corrupt slot: %v", err)
	}
	ok, err = s.GetSlot("bad", &v)
	if err != nil || ok {
		t.Errorf("expected (false, nil) for corrupt slot, got (%v, %v)", ok, err)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	u := model.User{ID: "u1", Username: "Sara", Role: model.RoleStudent}

	sess, err := s.CreateAuthSession(u)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("expected 64-char token, got %d", len(sess.Token))
	}

	got, err := s.GetAuthSession(sess.Token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if got == nil || got.User.ID != "u1" {
		t.Fatalf("expected session for u1, got %+v", got)
	}

	if err := s.DeleteAuthSession(sess.Token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	got, _ = s.GetAuthSession(sess.Token)
	if got != nil {
		t.Error("expected nil after delete")
	}

	// Expired sessions are dropped on read and by cleanup.
	expired := model.AuthSession{Token: "old", User: u, ExpiresAt: time.Now().Add(-time.Minute)}
	if err := s.SetSlot(currentUserPrefix+"old", expired); err != nil {
		t.Fatalf("SetSlot: %v", err)
	}
	live, _ := s.CreateAuthSession(u)
	removed, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	got, _ = s.GetAuthSession(live.Token)
	if got == nil {
		t.Error("expected live session to survive cleanup")
	}
}

func TestTheme(t *testing.T) {
	s := newTestStore(t)

	theme, err := s.Theme("u1")
	if err != nil {
		t.Fatalf("Theme: %v", err)
	}
	if theme != model.ThemeLight {
		t.Errorf("expected default light, got %q", theme)
	}

	if err := s.SetTheme("u1", model.ThemeDark); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	theme, _ = s.Theme("u1")
	if theme != model.ThemeDark {
		t.Errorf("expected dark, got %q", theme)
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)
	_ = s.AppendResult(model.ExamResult{ID: "r1", Grade: model.Grades[0], Score: 12})
	_ = s.AppendResult(model.ExamResult{ID: "r2", Grade: model.Grades[1], Score: 8})

	all, err := s.ExportResults("")
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if len(all.Results) != 2 || all.MaxScore != model.MaxScore {
		t.Errorf("unexpected export: %+v", all)
	}

	one, _ := s.ExportResults(model.Grades[1])
	if len(one.Results) != 1 || one.Results[0].ID != "r2" {
		t.Errorf("expected only r2, got %+v", one.Results)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Close()

	err = s.AppendResult(model.ExamResult{ID: "r1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	_, err = s.Results()
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on read, got %v", err)
	}
}

func TestNewUnopenablePath(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "missing", "exams.db"))
	if err == nil {
		s.Close()
		t.Fatal("expected an error for a path in a missing directory")
	}
	if s != nil {
		t.Errorf("expected nil store on failure, got %v", s)
	}
}
