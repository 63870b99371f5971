// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing. The translation
// from pipeline error kinds to HTTP status codes lives here and nowhere
// else.
package httputil
