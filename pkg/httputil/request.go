package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/reelgate/reelgate/pkg/auth"
)

// ParseJSON decodes JSON from the request body into the destination. A
// missing or malformed body is a validation error.
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return auth.ErrValidation("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return auth.ErrValidation("invalid JSON request body")
	}
	return nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryBool extracts and parses a boolean query parameter. Unparseable
// values fall back to the default.
func ParseQueryBool(r *http.Request, key string, defaultVal bool) bool {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return defaultVal
	}
	return val
}
