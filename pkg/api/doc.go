// Package api exposes the credential-issuance HTTP surface: registration,
// password login, and the Google sign-in redirect/callback pair. Handlers
// run the explicit pipeline strategy -> resolver -> issuer -> binder and
// translate pipeline errors to HTTP exactly once, at the end.
package api
