package sso

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/reelgate/reelgate/pkg/auth"
)

// OIDCProvider implements Provider against an OpenID Connect issuer.
type OIDCProvider struct {
	name         string
	config       Config
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCProvider discovers the issuer's endpoints and builds a provider.
// Discovery is a network call; the passed context bounds it.
func NewOIDCProvider(ctx context.Context, name string, config Config) (*OIDCProvider, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultProviderTimeout
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: config.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  config.RedirectURL,
		Scopes:       config.Scopes,
	}

	return &OIDCProvider{
		name:         name,
		config:       config,
		verifier:     verifier,
		oauth2Config: oauth2Config,
	}, nil
}

func validateConfig(config Config) error {
	if config.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if config.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if config.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if config.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	hasOpenID := false
	for _, scope := range config.Scopes {
		if scope == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("'openid' scope is required")
	}
	return nil
}

// Name returns the provider name used in persisted login states.
func (p *OIDCProvider) Name() string {
	return p.name
}

// AuthCodeURL builds the authorization endpoint redirect for the given state.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange redeems an authorization code for tokens, verifies the ID token,
// and maps its claims to an Identity. A failed exchange or verification is
// an authentication failure, not an internal error: the code may be forged,
// replayed, or expired.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("missing authorization code"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("failed to exchange code: %w", err))
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("missing id_token in token response"))
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("failed to verify ID token: %w", err))
	}

	var claims struct {
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Email      string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("failed to parse claims: %w", err))
	}

	identity := &Identity{
		Subject: idToken.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
	}
	if identity.Name == "" {
		identity.Name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	if identity.Subject == "" {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("missing subject in ID token"))
	}
	if identity.Email == "" {
		return nil, auth.ErrUnauthenticated(fmt.Errorf("missing email in ID token"))
	}
	if identity.Name == "" {
		identity.Name = identity.Email
	}

	return identity, nil
}
