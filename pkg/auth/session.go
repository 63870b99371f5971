package auth

import (
	"net/http"
	"time"
)

// CookieName is the name of the session cookie carrying the signed token.
const CookieName = "token"

// Cookie lifetimes. Both exceed TokenTTL on purpose: the cookie is a
// transport and remember-me mechanism, not proof of a still-valid token.
// Downstream verification re-checks expiry on every protected request.
const (
	// SessionCookieTTL applies when rememberMe is false.
	SessionCookieTTL = 2 * time.Hour
	// RememberMeCookieTTL applies when rememberMe is true.
	RememberMeCookieTTL = 30 * 24 * time.Hour
)

// SessionBinder decides cookie delivery for issued tokens. The token is
// always also returned in the response body; callers may use either
// channel.
type SessionBinder struct {
	// devMode disables HttpOnly and Secure so local non-TLS clients can
	// read the cookie. Always false outside development.
	devMode bool
}

// NewSessionBinder creates a binder. devMode must only be true in local
// development.
func NewSessionBinder(devMode bool) *SessionBinder {
	return &SessionBinder{devMode: devMode}
}

// Bind writes the token cookie on the response. SameSite is fixed to None
// to support cross-origin delivery with credentials.
func (b *SessionBinder) Bind(w http.ResponseWriter, token string, rememberMe bool) {
	maxAge := SessionCookieTTL
	if rememberMe {
		maxAge = RememberMeCookieTTL
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: !b.devMode,
		Secure:   !b.devMode,
		SameSite: http.SameSiteNoneMode,
	})
}

// Clear expires the token cookie.
func (b *SessionBinder) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: !b.devMode,
		Secure:   !b.devMode,
		SameSite: http.SameSiteNoneMode,
	})
}
