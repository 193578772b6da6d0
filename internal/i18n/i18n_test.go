package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("ar"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateArabic(t *testing.T) {
	ctx := initLang(t, "ar")

	got := T(ctx, "AlreadyCompleted")
	if got != "لقد أكملت هذا الامتحان من قبل" {
		t.Errorf("T(AlreadyCompleted) = %q", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "UserNotFound")
	if got != "Username does not exist" {
		t.Errorf("T(UserNotFound) = %q, want 'Username does not exist'", got)
	}
}

func TestUnknownLanguageFallsBackToDefault(t *testing.T) {
	ctx := initLang(t, "fr")

	got := T(ctx, "BadCredential")
	if got != "كلمة المرور غير صحيحة" {
		t.Errorf("T(BadCredential) = %q, want Arabic fallback", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ExamSubmitted", map[string]any{"Score": 14})
	if got != "Exam submitted! Your score: 14 / 20" {
		t.Errorf("Td(ExamSubmitted) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsRemaining", 1); got != "1 question left unanswered" {
		t.Errorf("Tp(1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsRemaining", 4); got != "4 questions left unanswered" {
		t.Errorf("Tp(4) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "ar")
	langs := Languages()
	if !slices.Contains(langs, "ar") || !slices.Contains(langs, "en") {
		t.Errorf("expected ar and en loaded, got %v", langs)
	}
}

func TestMiddlewareNegotiatesLanguage(t *testing.T) {
	if err := Init("ar"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Unauthorized")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Please sign in first" {
		t.Errorf("Accept-Language en: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/?lang=ar", nil)
	req.Header.Set("Accept-Language", "en")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "يرجى تسجيل الدخول أولاً" {
		t.Errorf("lang=ar: got %q", got)
	}
}

func TestLang(t *testing.T) {
	if got := Lang(initLang(t, "en")); got != "en" {
		t.Errorf("expected en, got %q", got)
	}
	if got := Lang(initLang(t, "fr")); got != "ar" {
		t.Errorf("expected fallback ar, got %q", got)
	}
}
