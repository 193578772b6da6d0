package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/manasetna/exams/internal/auth"
	"github.com/manasetna/exams/internal/catalog"
	appI18n "github.com/manasetna/exams/internal/i18n"
	"github.com/manasetna/exams/internal/model"
	"github.com/manasetna/exams/internal/review"
	"github.com/manasetna/exams/internal/session"
	"github.com/manasetna/exams/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := catalog.New(s)
	e := session.New(s, c, session.WithTickInterval(time.Hour))
	t.Cleanup(e.Close)

	h := New(s, auth.New(s, bcrypt.MinCost), c, e, nil, Config{})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

type apiClient struct {
	t    *testing.T
	http *http.Client
	base string
}

func newClient(t *testing.T, srv *httptest.Server) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &apiClient{t: t, http: &http.Client{Jar: jar}, base: srv.URL}
}

// do sends body as JSON and decodes the response into out when out is not nil.
func (c *apiClient) do(method, path string, body, out any) (int, string) {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *apiClient) send(req *http.Request, out any) (int, string) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL.Path, raw, err)
		}
	}
	return resp.StatusCode, string(raw)
}

func (c *apiClient) expectError(method, path string, body any, status int, code string) {
	c.t.Helper()
	var e errorResponse
	got, _ := c.do(method, path, body, &e)
	if got != status || e.Code != code {
		c.t.Errorf("%s %s: expected %d %s, got %d %s (%q)", method, path, status, code, got, e.Code, e.Error)
	}
}

func register(t *testing.T, srv *httptest.Server, username, grade string) *apiClient {
	t.Helper()
	c := newClient(t, srv)
	var resp authResponse
	status, raw := c.do("POST", "/api/register", credentials{Username: username, Password: "secret", Grade: grade}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, status, raw)
	}
	if strings.Contains(raw, "password") {
		t.Errorf("register response leaks the password field: %s", raw)
	}
	return c
}

func createExam(t *testing.T, admin *apiClient, grade string) model.Exam {
	t.Helper()
	var resp examResponse
	status, raw := admin.do("POST", "/api/exams", createExamRequest{
		Name:  "Fractions",
		Grade: grade,
		Questions: []catalog.QuestionInput{
			{Text: "1/2 + 1/2?", Options: []string{"0", "1", "2", "1/4"}, CorrectAnswer: 1},
			{Text: "1/2 of 8?", Options: []string{"2", "3", "4", "6"}, CorrectAnswer: 2},
			{Text: "3/4 - 1/4?", Options: []string{"1/2", "1", "2/4", "0"}, CorrectAnswer: 0},
		},
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("create exam: expected 201, got %d: %s", status, raw)
	}
	return resp.Exam
}

func TestExamFlow(t *testing.T) {
	srv := newTestServer(t)
	grade := model.Grades[2]

	admin := register(t, srv, auth.AdminUsername, "")
	exam := createExam(t, admin, grade)
	student := register(t, srv, "Sara", grade)

	var exams []examSummary
	status, raw := student.do("GET", "/api/exams", nil, &exams)
	if status != http.StatusOK || len(exams) != 1 || exams[0].ID != exam.ID || exams[0].Completed {
		t.Fatalf("unexpected exam list: %d %s", status, raw)
	}
	if strings.Contains(raw, "correctAnswer") {
		t.Error("student exam list leaks the answer key")
	}

	var view sessionView
	status, raw = student.do("POST", "/api/exams/"+exam.ID+"/sessions", nil, &view)
	if status != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", status, raw)
	}
	if strings.Contains(raw, "correctAnswer") {
		t.Error("session view leaks the answer key")
	}
	if view.RemainingSeconds != 900 || view.Total != 3 || view.Unanswered == "" {
		t.Errorf("unexpected initial view: %+v", view)
	}
	base := "/api/sessions/" + view.SessionID

	student.do("POST", base+"/answer", map[string]int{"question": 0, "option": 1}, &view)
	student.do("POST", base+"/next", nil, &view)
	student.do("POST", base+"/answer", map[string]int{"question": 1, "option": 0}, &view)
	if view.Position != 1 || view.Answered != 2 {
		t.Errorf("expected position 1 with 2 answers, got %+v", view.State)
	}
	student.expectError("POST", base+"/answer", map[string]int{"question": 9, "option": 0}, http.StatusBadRequest, "InvalidAnswer")
	student.expectError("POST", base+"/goto", map[string]string{}, http.StatusBadRequest, "BadRequest")

	var submitted submitResponse
	status, raw = student.do("POST", base+"/submit", nil, &submitted)
	if status != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", status, raw)
	}
	if submitted.Review.Result.Score != 7 || submitted.Review.CorrectCount != 1 || len(submitted.Review.Items) != 3 {
		t.Errorf("unexpected submit review: %+v", submitted.Review)
	}
	if submitted.Message != "Exam submitted! Your score: 7 / 20" {
		t.Errorf("unexpected message %q", submitted.Message)
	}
	if submitted.Review.BandLabel != "Needs more study" {
		t.Errorf("unexpected band label %q", submitted.Review.BandLabel)
	}

	var again submitResponse
	student.do("POST", base+"/submit", nil, &again)
	if again.Review.Result.ID != submitted.Review.Result.ID {
		t.Error("second submit returned a different result")
	}
	student.expectError("POST", base+"/answer", map[string]int{"question": 2, "option": 0}, http.StatusConflict, "SessionClosed")
	student.expectError("POST", "/api/exams/"+exam.ID+"/sessions", nil, http.StatusConflict, "AlreadyCompleted")

	var mine myResultsResponse
	student.do("GET", "/api/results/mine", nil, &mine)
	if len(mine.Results) != 1 || mine.Summary.Completed != 1 || mine.Summary.Average != 7 {
		t.Errorf("unexpected own results: %+v", mine)
	}

	var rev reviewView
	status, _ = student.do("GET", "/api/results/"+mine.Results[0].ID+"/review", nil, &rev)
	if status != http.StatusOK || !rev.HasAnswers || len(rev.Items) != 3 || !rev.Items[0].Correct {
		t.Errorf("unexpected review: %d %+v", status, rev)
	}

	var all resultsResponse
	admin.do("GET", "/api/results?grade="+url.QueryEscape(grade), nil, &all)
	if len(all.Results) != 1 || all.Stats.Count != 1 || all.Stats.PassingPercent != 0 {
		t.Errorf("unexpected admin results: %+v", all)
	}

	var dash review.Dashboard
	admin.do("GET", "/api/dashboard", nil, &dash)
	if dash.TotalExams != 1 || dash.Participants != 1 || dash.TotalResults != 1 || dash.ExamsByGrade[2].Exams != 1 {
		t.Errorf("unexpected dashboard: %+v", dash)
	}

	// Deleting the exam leaves the result readable as a summary.
	status, _ = admin.do("DELETE", "/api/exams/"+exam.ID, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	rev = reviewView{}
	admin.do("GET", "/api/results/"+mine.Results[0].ID+"/review", nil, &rev)
	if rev.HasExam || rev.Result.ExamName != "Fractions" {
		t.Errorf("expected summary-only review, got %+v", rev)
	}
}

func TestAccessControl(t *testing.T) {
	srv := newTestServer(t)
	grade := model.Grades[0]

	anon := newClient(t, srv)
	anon.expectError("GET", "/api/me", nil, http.StatusUnauthorized, "Unauthorized")

	admin := register(t, srv, auth.AdminUsername, "")
	exam := createExam(t, admin, grade)
	student := register(t, srv, "Omar", grade)
	other := register(t, srv, "Mona", model.Grades[1])

	student.expectError("POST", "/api/exams", createExamRequest{}, http.StatusForbidden, "Forbidden")
	student.expectError("GET", "/api/results", nil, http.StatusForbidden, "Forbidden")
	student.expectError("GET", "/api/dashboard", nil, http.StatusForbidden, "Forbidden")
	admin.expectError("POST", "/api/exams/"+exam.ID+"/sessions", nil, http.StatusForbidden, "Forbidden")
	other.expectError("POST", "/api/exams/"+exam.ID+"/sessions", nil, http.StatusForbidden, "GradeMismatch")
	student.expectError("POST", "/api/exams/missing/sessions", nil, http.StatusNotFound, "ExamNotFound")

	var view sessionView
	student.do("POST", "/api/exams/"+exam.ID+"/sessions", nil, &view)
	other.expectError("GET", "/api/sessions/"+view.SessionID, nil, http.StatusNotFound, "SessionNotFound")

	status, _ := student.do("DELETE", "/api/sessions/"+view.SessionID, nil, nil)
	if status != http.StatusOK {
		t.Errorf("cancel: expected 200, got %d", status)
	}
	student.expectError("GET", "/api/sessions/"+view.SessionID, nil, http.StatusNotFound, "SessionNotFound")

	var mine myResultsResponse
	student.do("GET", "/api/results/mine", nil, &mine)
	if len(mine.Results) != 0 {
		t.Errorf("expected no results after cancel, got %d", len(mine.Results))
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)

	c.expectError("POST", "/api/register", credentials{Username: "ab", Password: "secret", Grade: model.Grades[0]}, http.StatusBadRequest, "UsernameTooShort")
	c.expectError("POST", "/api/register", credentials{Username: "Sara", Password: "123", Grade: model.Grades[0]}, http.StatusBadRequest, "PasswordTooShort")
	c.expectError("POST", "/api/register", credentials{Username: "Sara", Password: "secret"}, http.StatusBadRequest, "MissingGrade")

	register(t, srv, "Sara", model.Grades[0])
	c.expectError("POST", "/api/register", credentials{Username: "Sara", Password: "other", Grade: model.Grades[0]}, http.StatusConflict, "DuplicateUsername")
	c.expectError("POST", "/api/login", credentials{Username: "sara", Password: "secret"}, http.StatusUnauthorized, "UserNotFound")
	c.expectError("POST", "/api/login", credentials{Username: "Sara", Password: "wrong"}, http.StatusUnauthorized, "BadCredential")

	var resp authResponse
	status, _ := c.do("POST", "/api/login", credentials{Username: "Sara", Password: "secret"}, &resp)
	if status != http.StatusOK || resp.User.Role != model.RoleStudent || resp.Theme != model.ThemeLight {
		t.Fatalf("unexpected login: %d %+v", status, resp)
	}

	c.expectError("POST", "/api/theme", themeRequest{Theme: "blue"}, http.StatusBadRequest, "InvalidTheme")
	c.do("POST", "/api/theme", themeRequest{Theme: model.ThemeDark}, nil)
	var theme themeRequest
	c.do("GET", "/api/theme", nil, &theme)
	if theme.Theme != model.ThemeDark {
		t.Errorf("expected dark theme, got %q", theme.Theme)
	}

	status, _ = c.do("POST", "/api/logout", nil, nil)
	if status != http.StatusOK {
		t.Errorf("logout: expected 200, got %d", status)
	}
	c.expectError("GET", "/api/me", nil, http.StatusUnauthorized, "Unauthorized")
}

func TestImportExams(t *testing.T) {
	srv := newTestServer(t)
	admin := register(t, srv, auth.AdminUsername, "")

	upload := func() (int, importResponse) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("exams_file", "term1.json")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte(`[{"name":"Term one","grade":"` + model.Grades[5] + `","questions":[{"text":"5+5?","options":["10","11","12","55"],"correctAnswer":0}]}]`))
		_ = mw.Close()

		req, _ := http.NewRequest("POST", admin.base+"/api/exams/import", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		var resp importResponse
		status, _ := admin.send(req, &resp)
		return status, resp
	}

	status, resp := upload()
	if status != http.StatusCreated || len(resp.Exams) != 1 || resp.Message != "Imported 1 exam" {
		t.Fatalf("unexpected import: %d %+v", status, resp)
	}
	status, _ = upload()
	if status != http.StatusConflict {
		t.Errorf("expected 409 on re-import, got %d", status)
	}
}

func TestLocalizedErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv)

	req, _ := http.NewRequest("GET", c.base+"/api/me?lang=ar", nil)
	var e errorResponse
	c.send(req, &e)
	if e.Code != "Unauthorized" || e.Error == "" || e.Error == "Please sign in first" {
		t.Errorf("expected an Arabic message, got %+v", e)
	}
}
