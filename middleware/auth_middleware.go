package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/taskboard/utils"
	"go.uber.org/zap"
)

// SessionValidator defines the interface for validating session tokens
type SessionValidator interface {
	// Validate verifies a session token and returns the account id it carries
	Validate(token string) (uuid.UUID, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator  SessionValidator
	cookieName string
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator SessionValidator, cookieName string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator:  validator,
		cookieName: cookieName,
		logger:     logger,
	}
}

// RequireAuth is a middleware that requires a valid session token. An absent
// token is unauthenticated, never an implicit guest; an invalid token is
// rejected the same way and logged, not surfaced as a server error.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" {
			m.logger.Warn("missing session token",
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		userID, err := m.validator.Validate(token)
		if err != nil {
			m.logger.Warn("session validation failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{UserID: userID})

		m.logger.Debug("authentication successful",
			zap.String("user_id", userID.String()))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken extracts the session token from the Authorization header
// ("Bearer TOKEN") or the session cookie. The header takes precedence when
// both are present.
func (m *AuthMiddleware) extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
