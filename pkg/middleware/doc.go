// Package middleware provides HTTP middleware for token verification,
// scope enforcement, and cross-origin access.
package middleware
