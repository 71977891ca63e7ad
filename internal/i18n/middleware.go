package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware picks the language for every request: the "lang" query
// parameter first, then Accept-Language, then the default from Init.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := Negotiate(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
		ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Negotiate returns the best loaded language for the given preferences.
func Negotiate(prefs ...string) string {
	var tags []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		t, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, t...)
	}
	_, idx, _ := matcher.Match(tags...)
	return Languages()[idx]
}
