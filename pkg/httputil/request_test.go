package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/pkg/auth"
)

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))

	var dest struct {
		Email string `json:"email"`
	}
	require.NoError(t, ParseJSON(req, &dest))
	assert.Equal(t, "a@b.c", dest.Email)
}

func TestParseJSON_MalformedBodyIsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))

	var dest map[string]string
	err := ParseJSON(req, &dest)
	require.Error(t, err)
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))
}

func TestParseJSON_EmptyBodyIsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)

	var dest map[string]string
	err := ParseJSON(req, &dest)
	require.Error(t, err)
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?API_KEY_TOKEN=abc123", nil)

	assert.Equal(t, "abc123", ParseQueryString(req, "API_KEY_TOKEN", ""))
	assert.Equal(t, "fallback", ParseQueryString(req, "missing", "fallback"))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?rememberMe=true&bad=zzz", nil)

	assert.True(t, ParseQueryBool(req, "rememberMe", false))
	assert.False(t, ParseQueryBool(req, "absent", false))
	assert.True(t, ParseQueryBool(req, "absent", true))
	assert.False(t, ParseQueryBool(req, "bad", false))
}
