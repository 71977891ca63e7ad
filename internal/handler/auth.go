package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const authRealm = `Basic realm="socratic reports", charset="UTF-8"`

// requireAuth checks HTTP basic credentials against the configured bcrypt
// hash. Without a hash every request passes.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	if h.config.PasswordHash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !h.checkCredentials(user, pass) {
			if ok {
				slog.Warn("report login failed", "user", user, "remote", r.RemoteAddr)
			}
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) checkCredentials(user, pass string) bool {
	userOK := len(user) == len(h.config.Username) &&
		subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(h.config.PasswordHash), []byte(pass)) == nil
	return userOK && passOK
}

// HashPassword returns the bcrypt hash to put in the report server config.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
