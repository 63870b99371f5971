package auth

import "time"

// User is a stored account record. PasswordHash never leaves the service;
// external-identity accounts have an empty hash and a populated ExternalID.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	ExternalID   string     `json:"-"` // subject from the identity provider, if any
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Principal is the verified identity produced by a successful strategy.
// It carries no authorization information; scopes are attached later by the
// resolver. Immutable once produced.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PrincipalFromUser builds a Principal from a stored record.
func PrincipalFromUser(u *User) *Principal {
	return &Principal{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// APIKey maps a caller-supplied key token to its authorized scope set.
// Looked up, never mutated, by this core.
type APIKey struct {
	Token  string   `json:"token"`
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the key grants the named scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
