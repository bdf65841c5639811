package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-collab-server/auth"
	"github.com/jrsteele09/go-collab-server/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyPrincipal stores the admitted *auth.Principal
const ContextKeyPrincipal ContextKey = "principal"

// PrincipalFromContext returns the principal RequireAuth admitted, if any.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*auth.Principal)
	return p, ok && p != nil
}

// accessToken reads the access credential from its cookie, falling back to
// a Bearer Authorization header for non-browser clients.
func accessToken(r *http.Request) string {
	if token := strings.TrimSpace(cookieValue(r, accessTokenCookie)); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// RequireAuth admits requests carrying a valid access credential: 401 when
// none is presented (or it lacks an upstream token), 403 when it fails
// verification.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, err := s.auth.Admit(accessToken(r))
			if err != nil {
				message := "Invalid Token"
				if statusFor(err) == http.StatusUnauthorized {
					message = "Unauthorized"
				}
				writeError(w, r, err, message)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole must be chained after RequireAuth.
func (s *Server) RequireRole(role users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, _ := PrincipalFromContext(r.Context())
			if err := s.auth.Authorize(principal, role); err != nil {
				writeError(w, r, err, "Access Denied")
				return
			}
			next(w, r)
		}
	}
}
