package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/betomay/papertoplan/internal/core/ports"
)

const (
	authUserHeader = "x-auth-user"
	authPINHeader  = "x-auth-pin"
)

type authUserContextKey struct{}

func usernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(authUserContextKey{}).(string)
	return username
}

// authMiddleware verifies the credential headers against the durable user
// store on every request. There is no session token; the headers are the
// session.
func authMiddleware(sessions ports.SessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(authUserHeader))
		pin := strings.TrimSpace(r.Header.Get(authPINHeader))
		if username == "" || pin == "" {
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}

		ok, err := sessions.VerifyUser(r.Context(), username, pin)
		if err != nil {
			slog.Error("verify user", "error", err, "request_id", requestIDFromContext(r.Context()))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx := context.WithValue(r.Context(), authUserContextKey{}, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
