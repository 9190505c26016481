package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/upb/taskboard/app"
	"github.com/upb/taskboard/googleauth"
	"github.com/upb/taskboard/middleware"
	"github.com/upb/taskboard/utils"
	"go.uber.org/zap"
)

// googleAuthRequest is the body of POST /auth/google
type googleAuthRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// authResponse is the success body of POST /auth/google. The token is also
// set as the session cookie; it is returned in the body for clients that
// prefer the Authorization header.
type authResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    interface{} `json:"user"`
}

// GoogleAuthHandler verifies a Google ID token, links it to a local account,
// and issues the session credential
func GoogleAuthHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req googleAuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "Google token is required", nil)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			_ = utils.WriteBadRequest(w, "Google token is required", nil)
			return
		}

		claims, err := deps.Verifier.Verify(r.Context(), req.Credential)
		if err != nil {
			if errors.Is(err, googleauth.ErrMissingClaim) {
				deps.Logger.Warn("assertion missing required claims", zap.Error(err))
				_ = utils.WriteBadRequest(w, "Invalid Google payload", nil)
				return
			}
			deps.Logger.Warn("assertion verification failed", zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Authentication failed")
			return
		}

		user, err := deps.Accounts.Link(r.Context(), claims)
		if err != nil {
			// Linking failures, races included, surface as a generic
			// authentication failure; constraint detail never leaks.
			deps.Logger.Error("account linking failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Authentication failed")
			return
		}

		token, err := deps.Sessions.Issue(user.ID)
		if err != nil {
			deps.Logger.Error("session issuance failed", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Token generation failed")
			return
		}

		http.SetCookie(w, deps.Sessions.Cookie(token))
		_ = utils.WriteJSON(w, http.StatusOK, authResponse{
			Success: true,
			Token:   token,
			User:    user.Public(),
		})
	}
}

// MeHandler returns the current principal's account, sensitive fields stripped
func MeHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipalFromContext(r.Context())
		if principal == nil {
			_ = utils.WriteUnauthorized(w, "Not authorized")
			return
		}

		user, err := deps.Accounts.Get(r.Context(), principal.UserID)
		if err != nil {
			writeDomainError(w, deps.Logger, err)
			return
		}

		_ = utils.WriteOK(w, user.Public())
	}
}

// LogoutHandler clears the session cookie by issuing one with a past expiry.
// Already-issued tokens remain valid until their natural expiry.
func LogoutHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, deps.Sessions.ClearCookie())
		_ = utils.WriteOK(w, struct{}{})
	}
}
