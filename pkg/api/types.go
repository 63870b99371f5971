package api

import (
	"strings"

	"github.com/reelgate/reelgate/pkg/auth"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks request shape before any store access.
func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return auth.ErrValidation("email is required")
	}
	if !strings.Contains(r.Email, "@") {
		return auth.ErrValidation("email is invalid")
	}
	if r.Password == "" {
		return auth.ErrValidation("password is required")
	}
	return nil
}

// LoginRequest is the body of POST /api/auth/login. The API key token
// travels in the API_KEY_TOKEN query parameter, not the body.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Validate checks request shape before any store access.
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return auth.ErrValidation("email is required")
	}
	if r.Password == "" {
		return auth.ErrValidation("password is required")
	}
	return nil
}

// TokenResponse is the success body of POST /api/auth/login.
type TokenResponse struct {
	Token string `json:"token"`
}

// RegisteredUser is the payload of a successful registration.
type RegisteredUser struct {
	ID string `json:"id"`
}

// CallbackData is the payload of a successful Google callback.
type CallbackData struct {
	User *auth.User `json:"user"`
}

// CallbackResponse is the success body of GET /api/auth/google/callback.
// Token is present only when the initiating request supplied an API key
// token.
type CallbackResponse struct {
	Data  CallbackData `json:"data"`
	Token string       `json:"token,omitempty"`
}
