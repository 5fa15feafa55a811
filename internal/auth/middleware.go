package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
)

type contextKey struct{}

// SessionFromContext returns the session attached by RequireAuth, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(contextKey{}).(*Session)
	return session
}

// RequireAuth rejects requests without a valid bearer token and attaches
// the session to the request context.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		session, ok := s.SessionByToken(token)
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, &session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only admin sessions through; mount inside RequireAuth.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if session.Role != pos.RoleAdmin {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
