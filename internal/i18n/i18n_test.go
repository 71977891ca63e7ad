package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Socratic Reports" {
		t.Errorf("T(AppTitle) = %q, want 'Socratic Reports'", got)
	}
	if got := T(ctx, "Verdict"); got != "Verdict" {
		t.Errorf("T(Verdict) = %q, want 'Verdict'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "AppTitle"); got != "Отчёты Socratic" {
		t.Errorf("T(AppTitle) = %q, want 'Отчёты Socratic'", got)
	}
	if got := T(ctx, "Transcript"); got != "Диалог" {
		t.Errorf("T(Transcript) = %q, want 'Диалог'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	tests := []struct {
		count int
		want  string
	}{
		{1, "1 dialogue"},
		{5, "5 dialogues"},
	}
	for _, tt := range tests {
		if got := Tp(ctx, "DialoguesCount", tt.count); got != tt.want {
			t.Errorf("Tp(DialoguesCount, %d) = %q, want %q", tt.count, got, tt.want)
		}
	}

	ru := initLang(t, "ru")
	for count, want := range map[int]string{1: "1 диалог", 3: "3 диалога", 5: "5 диалогов", 21: "21 диалог"} {
		if got := Tp(ru, "DialoguesCount", count); got != want {
			t.Errorf("Tp(DialoguesCount, %d) = %q, want %q", count, got, want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "RunN", map[string]any{"ID": "abc"})
	if got != "Run abc" {
		t.Errorf("Td(RunN, ID=abc) = %q, want 'Run abc'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNegotiate(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		name  string
		prefs []string
		want  string
	}{
		{"nothing", nil, "en"},
		{"accept header", []string{"", "ru-RU,ru;q=0.9,en;q=0.5"}, "ru"},
		{"query wins", []string{"en", "ru"}, "en"},
		{"unsupported", []string{"", "de-DE"}, "en"},
		{"garbage", []string{"!!", ""}, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Negotiate(tt.prefs...); got != tt.want {
				t.Errorf("Negotiate(%q) = %q, want %q", tt.prefs, got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Runs")
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=ru", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Запуски" {
		t.Errorf("with lang=ru got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Запуски" {
		t.Errorf("with Accept-Language ru got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Runs" {
		t.Errorf("default got %q", got)
	}
}
