package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gorm.io/gorm"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// AuthContextKey is the key for storing AuthContext in request context
	AuthContextKey ContextKey = "authContext"
)

// Middleware creates an HTTP middleware that extracts and injects
// authentication context. It:
// 1. Extracts the Authorization header
// 2. Parses the token to get the identity subject
// 3. Looks up the identity context from the database
// 4. Injects the identity context and raw token into the request
//
// If any step fails (missing token, malformed token, database error), the
// request proceeds without auth context; handlers decide whether that is
// acceptable. This allows public, protected and optional-auth endpoints to
// share one middleware.
func Middleware(authService *AuthService, tokenExtractor *TokenExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			if authHeader == "" {
				slog.Debug("no authorization header provided")
				next.ServeHTTP(w, r)
				return
			}

			token, err := tokenExtractor.ExtractBearerToken(authHeader)
			if err != nil {
				slog.Warn("failed to extract bearer token",
					"error", err,
					"auth_header_length", len(authHeader),
				)
				next.ServeHTTP(w, r)
				return
			}

			subject, err := tokenExtractor.ExtractSubject(token)
			if err != nil {
				slog.Warn("failed to extract subject from token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			identity, err := authService.GetIdentityContext(subject)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// First request from this identity, no mapping yet.
					slog.Info("identity context not found, initializing empty context",
						"subject", subject,
					)
					identity = &IdentityContext{
						Subject:  subject,
						Metadata: json.RawMessage(`{}`),
					}
				} else {
					slog.Warn("failed to get identity context from database",
						"subject", subject,
						"error", err,
					)
					next.ServeHTTP(w, r)
					return
				}
			}

			authCtx := &AuthContext{
				IdentityContext: identity,
				Token:           token,
			}

			ctx := context.WithValue(r.Context(), AuthContextKey, authCtx)
			r = r.WithContext(ctx)

			slog.Debug("auth context injected successfully",
				"subject", subject,
			)

			next.ServeHTTP(w, r)
		})
	}
}

// GetAuthContext extracts the AuthContext from a request context.
// Returns nil if no auth context is available (request had no valid token).
//
// Usage in handlers:
//
//	authCtx := auth.GetAuthContext(r.Context())
//	if authCtx == nil {
//	    // Handle unauthorized request
//	}
func GetAuthContext(ctx context.Context) *AuthContext {
	authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireAuth returns a middleware that requires authentication.
// If no auth context is found, returns 401 Unauthorized.
func RequireAuth(authService *AuthService, tokenExtractor *TokenExtractor) func(http.Handler) http.Handler {
	// Create the auth middleware once, not on every request
	authMiddleware := Middleware(authService, tokenExtractor)

	return func(next http.Handler) http.Handler {
		return authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r.Context())
			if authCtx == nil {
				slog.Warn("authentication required but not provided",
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}`))
				return
			}

			next.ServeHTTP(w, r)
		}))
	}
}
