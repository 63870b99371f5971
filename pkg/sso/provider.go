package sso

import (
	"context"
	"time"
)

// defaultProviderTimeout is used when a Config carries no timeout.
const defaultProviderTimeout = 10 * time.Second

// Identity is the verified external identity returned by a provider
// callback. Subject is the provider's stable user identifier.
type Identity struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Provider abstracts the OIDC round trip so handlers and tests do not
// depend on a live identity provider.
type Provider interface {
	// Name identifies the provider in persisted login states.
	Name() string

	// AuthCodeURL builds the provider redirect URL for the given state.
	AuthCodeURL(state string) string

	// Exchange redeems an authorization code, verifies the returned proof,
	// and maps its claims to an Identity.
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Config holds OIDC provider settings.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Timeout bounds each network round trip to the provider. The
	// upstream flow had none; one is required here so a stalled provider
	// cannot pin request handlers.
	Timeout time.Duration
}

// GoogleConfig returns the preset for Google sign-in with the standard
// claim set: stable subject, profile name, and email.
func GoogleConfig(clientID, clientSecret, redirectURL string) Config {
	return Config{
		IssuerURL:    "https://accounts.google.com",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Timeout:      defaultProviderTimeout,
	}
}
