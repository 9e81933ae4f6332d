package httpapi

import (
	"context"
	"net/http"
	"strings"

	doora "github.com/doora-app/doora"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity injected by [Server.RequireAuth].
func AuthResultFromContext(ctx context.Context) (*doora.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*doora.AuthResult)
	return res, ok
}

// RequireAuth validates the access token from the Authorization header or
// the accessToken cookie and injects the result into the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := accessTokenFromRequest(r)
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		res, err := s.engine.ValidateAccess(r.Context(), token)
		if err != nil {
			writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects any authenticated identity whose role is not admin.
// It must run after [Server.RequireAuth].
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok || res.Role != "admin" {
			writeEnvelope(w, http.StatusForbidden, "access denied, admins only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessTokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookie, err := r.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
