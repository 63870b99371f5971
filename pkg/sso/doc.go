// Package sso implements the external-identity authentication strategy: an
// OpenID Connect redirect/callback flow against a configured provider
// (Google by default) plus just-in-time provisioning of local user records.
// The provider's own protocol internals are treated as a black box; this
// package only initiates the redirect, verifies the returned proof, and
// maps claims to a Principal.
package sso
