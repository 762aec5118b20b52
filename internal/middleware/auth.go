package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hongminglow/aratiri-client/internal/http/respond"
)

type ctxKey struct{}

// Verifier checks an access token and returns its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

// Authenticate rejects requests without a valid access token with 401. The
// token comes from the Authorization header or, for socket upgrades that cannot
// set headers, the token query parameter.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, "missing access token")
				return
			}
			subject, err := v.Verify(token)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, subject)))
		})
	}
}

// UserID returns the authenticated subject stored by Authenticate.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
