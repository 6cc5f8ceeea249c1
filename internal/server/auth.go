package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator resolves an HTTP request to a user id.
type Authenticator interface {
	// Authenticate returns the caller's user id, or false if the
	// request carries no valid credentials.
	Authenticate(r *http.Request) (string, bool)
}

// TokenAuthenticator validates bearer tokens against a configured
// token-to-user table.
type TokenAuthenticator struct {
	tokens map[string]string
}

// NewTokenAuthenticator creates an authenticator from a token→user map.
func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens}
}

// Authenticate checks the Authorization bearer token. Comparison is
// constant-time across all configured tokens to avoid timing leaks.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}

	matchedUser := ""
	matched := 0
	for candidate, userID := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			matchedUser = userID
			matched = 1
		}
	}
	if matched != 1 {
		return "", false
	}
	return matchedUser, true
}

// userIDKey is the context key for the authenticated user id.
type userIDKey struct{}

// requireAuth rejects unauthenticated requests and stores the caller's
// user id in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.auth.Authenticate(r)
		if !ok {
			s.logger.Warn("unauthenticated request",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID returns the authenticated user id from the request context.
func callerID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey{}).(string)
	return userID
}
