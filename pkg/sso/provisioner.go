package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelgate/reelgate/pkg/auth"
	"github.com/reelgate/reelgate/pkg/storage"
)

// UserStore is the subset of the credential store the provisioner needs.
type UserStore interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, params storage.CreateUserParams) (string, error)
	LinkExternalIdentity(ctx context.Context, userID, externalID string) error
	TouchLastLogin(ctx context.Context, userID string) error
}

// Provisioner maps verified external identities to local user records,
// creating them just in time on first login.
type Provisioner struct {
	store UserStore
}

// NewProvisioner creates a provisioner backed by the given store.
func NewProvisioner(store UserStore) *Provisioner {
	return &Provisioner{store: store}
}

// FindOrProvision resolves an external identity to a local user. Resolution
// order: an existing link by provider subject wins; otherwise an existing
// account with the same email is linked to the subject; otherwise a new
// account is created. Accounts provisioned here carry no password hash, so
// they cannot be signed into with password credentials.
func (p *Provisioner) FindOrProvision(ctx context.Context, identity *Identity) (*auth.User, error) {
	user, err := p.store.GetUserByExternalID(ctx, identity.Subject)
	if err != nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to look up external identity: %w", err))
	}
	if user != nil {
		if err := p.store.TouchLastLogin(ctx, user.ID); err != nil {
			return nil, auth.ErrInternal(fmt.Errorf("failed to record login: %w", err))
		}
		return user, nil
	}

	user, err = p.store.GetUserByEmail(ctx, identity.Email)
	if err != nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to look up user: %w", err))
	}
	if user != nil {
		return p.link(ctx, user, identity)
	}

	_, err = p.store.CreateUser(ctx, storage.CreateUserParams{
		Name:       identity.Name,
		Email:      identity.Email,
		ExternalID: identity.Subject,
	})
	if errors.Is(err, storage.ErrDuplicateUser) {
		// Lost a race with a concurrent first login or registration for the
		// same email. The row now exists, so fall back to linking it.
		user, err = p.store.GetUserByEmail(ctx, identity.Email)
		if err != nil || user == nil {
			return nil, auth.ErrInternal(fmt.Errorf("failed to resolve user after duplicate: %w", err))
		}
		return p.link(ctx, user, identity)
	}
	if err != nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to provision user: %w", err))
	}

	user, err = p.store.GetUserByExternalID(ctx, identity.Subject)
	if err != nil || user == nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to fetch provisioned user: %w", err))
	}
	if err := p.store.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to record login: %w", err))
	}
	return user, nil
}

func (p *Provisioner) link(ctx context.Context, user *auth.User, identity *Identity) (*auth.User, error) {
	if err := p.store.LinkExternalIdentity(ctx, user.ID, identity.Subject); err != nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to link external identity: %w", err))
	}
	if err := p.store.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, auth.ErrInternal(fmt.Errorf("failed to record login: %w", err))
	}
	user.ExternalID = identity.Subject
	return user, nil
}
