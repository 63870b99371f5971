// Package storage provides the credential store adapter: user and API-key
// lookups over PostgreSQL, OAuth login-state persistence, and a read-through
// cache for API keys. The auth core only ever queries users by email or
// external ID and API keys by token; anything richer belongs to the owning
// service, not this adapter.
package storage
