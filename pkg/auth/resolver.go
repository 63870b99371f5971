package auth

import (
	"context"
	"fmt"
)

// KeySource is the narrow store contract the scope resolver depends on.
// The read-through cache in pkg/storage satisfies it too.
type KeySource interface {
	// GetAPIKeyByToken returns nil, nil when no key matches.
	GetAPIKeyByToken(ctx context.Context, token string) (*APIKey, error)
}

// ScopeResolver maps a caller-supplied API key token to its scope set.
// Missing and unknown tokens both resolve to an unauthorized failure; the
// two cases differ only in log detail so callers cannot probe for valid
// tokens.
type ScopeResolver struct {
	keys KeySource
}

// NewScopeResolver creates a resolver backed by the given key source.
func NewScopeResolver(keys KeySource) *ScopeResolver {
	return &ScopeResolver{keys: keys}
}

// Resolve looks up the API key for the given token. The resolver never
// expands scope: the returned set is exactly what the store attached to the
// key.
func (r *ScopeResolver) Resolve(ctx context.Context, token string) (*APIKey, error) {
	if token == "" {
		return nil, ErrUnauthorized("[API_KEY_TOKEN] property is required in request body.")
	}

	key, err := r.keys.GetAPIKeyByToken(ctx, token)
	if err != nil {
		return nil, ErrInternal(fmt.Errorf("api key lookup failed: %w", err))
	}
	if key == nil {
		return nil, ErrUnauthorized("Unauthorized")
	}

	return key, nil
}
