// Package auth implements the credential-issuance core: authentication
// strategies, API-key scope resolution, JWT issuance, and session cookie
// policy. Strategies produce a Principal; the resolver attaches scopes; the
// issuer signs the result. No component in this package issues a token as a
// side effect of authentication.
package auth
