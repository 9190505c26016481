// Package session issues and validates the signed, time-bound credential
// that represents an authenticated account across requests. Tokens are
// stateless: logout only clears the client-held cookie, and an issued token
// stays honorable until its exp elapses. True revocation would need a
// server-side deny-list, which is out of scope.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/taskboard/config"
)

// ErrInvalidSession is returned when a session token is malformed, badly
// signed, expired, or otherwise unacceptable. Callers treat it as
// unauthenticated, never as a server failure.
var ErrInvalidSession = errors.New("invalid session")

// Issuer mints session tokens and describes their cookie transport
type Issuer struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	production bool
}

// NewIssuer creates a session issuer from config. The production flag
// controls cookie hardening (Secure + SameSite=None vs Lax for local dev).
func NewIssuer(cfg config.SessionConfig, production bool) *Issuer {
	return &Issuer{
		secret:     []byte(cfg.Secret),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		production: production,
	}
}

// Issue mints a signed token carrying the account id, issuance time, and
// expiry. The account record itself is not touched.
func (i *Issuer) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Cookie wraps a token in its transport cookie: http-only, expiry matching
// the token's own, secure and cross-site-capable in production, relaxed for
// local development.
func (i *Issuer) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     i.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(i.ttl),
		MaxAge:   int(i.ttl.Seconds()),
		HttpOnly: true,
		Secure:   i.production,
		SameSite: i.sameSite(),
	}
}

// ClearCookie returns a cookie that expires in the past, discarding the
// client-held token. The token itself remains valid until its exp.
func (i *Issuer) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     i.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.production,
		SameSite: i.sameSite(),
	}
}

// CookieName returns the configured session cookie name
func (i *Issuer) CookieName() string {
	return i.cookieName
}

func (i *Issuer) sameSite() http.SameSite {
	// SameSite=None requires Secure; only viable in production deployments
	// where the API and SPA live on different sites over TLS.
	if i.production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Validator accepts or rejects session tokens. The decision depends only on
// the token's signature and timestamps; no storage is consulted.
type Validator struct {
	secret []byte
}

// NewValidator creates a session validator sharing the issuer's secret
func NewValidator(cfg config.SessionConfig) *Validator {
	return &Validator{secret: []byte(cfg.Secret)}
}

// Validate verifies signature and expiry and recovers the account id.
// Any failure collapses to ErrInvalidSession.
func (v *Validator) Validate(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrInvalidSession
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}

	return userID, nil
}
