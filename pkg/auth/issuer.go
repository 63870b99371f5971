package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed validity window of an issued token. Cookie lifetime
// is a separate, longer policy; see SessionBinder.
const TokenTTL = 15 * time.Minute

// Claims is the payload asserted by an issued token: subject identity,
// profile fields, and the scope set resolved from the API key.
type Claims struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Issuer builds and verifies signed, time-bound tokens. The signing secret
// is injected at construction and never rotated mid-process; rotation
// requires a restart.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an issuer with the process-wide signing secret.
func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	return &Issuer{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// WithClock overrides the issuer's time source. Test use only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a fresh token binding the principal to the given scopes.
// A new payload is built per call; tokens are never reused across requests.
func (i *Issuer) Issue(principal *Principal, scopes []string) (string, error) {
	issuedAt := i.now()

	claims := Claims{
		Name:   principal.Name,
		Email:  principal.Email,
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", ErrInternal(fmt.Errorf("failed to sign token: %w", err))
	}

	return signed, nil
}

// Verify parses and validates a signed token, including expiry. Every
// protected request goes through here; a cookie carrying an expired token
// fails like any other stale token.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrUnauthenticated(fmt.Errorf("token verification failed: %w", err))
	}

	return claims, nil
}
