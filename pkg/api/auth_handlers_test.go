package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/pkg/audit"
	"github.com/reelgate/reelgate/pkg/auth"
)

func jsonReq(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func registerUser(t *testing.T, env *testEnv, name, email, password string) string {
	t.Helper()
	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Name: name, Email: email, Password: password,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data    RegisteredUser `json:"data"`
		Message string         `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "hunter2",
	}))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data    RegisteredUser `json:"data"`
		Message string         `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "user created", resp.Message)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	id := registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email: "ada@example.com", Password: "different",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user already exists")

	// The original record is untouched.
	user, err := env.store.GetUserByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  RegisterRequest
		want string
	}{
		{"missing email", RegisterRequest{Password: "p"}, "email is required"},
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "p"}, "email is invalid"},
		{"missing password", RegisterRequest{Email: "a@b.c"}, "password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/register", tt.req))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRegister_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{nope"))
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t, "KEY1", []string{"read"})
	id := registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "ada@example.com", Password: "hunter2",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := env.issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, []string{"read"}, claims.Scopes)
	assert.WithinDuration(t,
		claims.IssuedAt.Add(auth.TokenTTL), claims.ExpiresAt.Time, time.Second)

	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.Equal(t, int((2 * time.Hour).Seconds()), cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
}

func TestLogin_RememberMe(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t, "KEY1", []string{"read"})
	registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "ada@example.com", Password: "hunter2", RememberMe: true,
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t, "KEY1", []string{"read"})
	registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "ada@example.com", Password: "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	assert.Nil(t, tokenCookie(rec))
}

func TestLogin_UnknownUserSameAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t, "KEY1", []string{"read"})
	registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	wrongPassword := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "ada@example.com", Password: "wrong",
	}))
	unknownUser := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "nobody@example.com", Password: "hunter2",
	}))

	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestLogin_MissingAPIKeyToken(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email: "ada@example.com", Password: "hunter2",
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "[API_KEY_TOKEN] property is required in request body.")
	assert.Nil(t, tokenCookie(rec))
}

func TestLogin_UnknownAPIKeyToken(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	rec := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=NOPE", LoginRequest{
		Email: "ada@example.com", Password: "hunter2",
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized")
	assert.Nil(t, tokenCookie(rec))
}

func TestGoogleLogin_RedirectsAndSavesState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/auth/google?rememberMe=true&API_KEY_TOKEN=KEY1", nil))

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", location.Host)

	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	saved, err := env.store.ConsumeLoginState(t.Context(), state)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "google", saved.Provider)
	assert.True(t, saved.RememberMe)
	assert.Equal(t, "KEY1", saved.APIKey)
	assert.True(t, saved.ExpiresAt.After(time.Now()))
}

func googleRoundTrip(t *testing.T, env *testEnv, initiate string) *httptest.ResponseRecorder {
	t.Helper()
	rec := env.do(httptest.NewRequest(http.MethodGet, initiate, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	callback := fmt.Sprintf("/api/auth/google/callback?state=%s&code=auth-code", state)
	return env.do(httptest.NewRequest(http.MethodGet, callback, nil))
}

func TestGoogleCallback_ProvisionsUser(t *testing.T) {
	env := newTestEnv(t)

	rec := googleRoundTrip(t, env, "/api/auth/google")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "auth-code", env.provider.gotCode)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.User)
	assert.Equal(t, "grace@example.com", resp.Data.User.Email)
	assert.Equal(t, "Grace Hopper", resp.Data.User.Name)
	assert.Empty(t, resp.Token)
	assert.Nil(t, tokenCookie(rec))

	// The account exists now and is external-only.
	user, err := env.store.GetUserByExternalID(t.Context(), "google-sub-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Empty(t, user.PasswordHash)
}

func TestGoogleCallback_IssuesTokenWithAPIKey(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t, "KEY1", []string{"read", "write"})

	rec := googleRoundTrip(t, env, "/api/auth/google?API_KEY_TOKEN=KEY1&rememberMe=true")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := env.issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, claims.Scopes)
	assert.Equal(t, "grace@example.com", claims.Email)

	cookie := tokenCookie(rec)
	require.NotNil(t, cookie)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestGoogleCallback_UnknownState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=forged&code=c", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleCallback_StateSingleUse(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	callback := "/api/auth/google/callback?state=" + location.Query().Get("state") + "&code=c"

	first := env.do(httptest.NewRequest(http.MethodGet, callback, nil))
	second := env.do(httptest.NewRequest(http.MethodGet, callback, nil))

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestGoogleCallback_ProviderDenial(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?error=access_denied", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestGoogleCallback_ExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.exchangeErr = auth.ErrUnauthenticated(errors.New("invalid grant"))

	rec := googleRoundTrip(t, env, "/api/auth/google")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleCallback_LinksPasswordAccount(t *testing.T) {
	env := newTestEnv(t)
	id := registerUser(t, env, "Grace", "grace@example.com", "hunter2")

	rec := googleRoundTrip(t, env, "/api/auth/google")

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.User.ID)

	// Password login still works after linking.
	env.seedAPIKey(t, "KEY1", []string{"read"})
	login := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "grace@example.com", Password: "hunter2",
	}))
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.seedAPIKey(t, "KEY1", []string{"read"})
	registerUser(t, env, "Ada", "ada@example.com", "hunter2")

	ok := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "ada@example.com", Password: "hunter2",
	}))
	require.Equal(t, http.StatusOK, ok.Code)

	bad := env.do(jsonReq(t, http.MethodPost, "/api/auth/login?API_KEY_TOKEN=KEY1", LoginRequest{
		Email: "ada@example.com", Password: "wrong",
	}))
	require.Equal(t, http.StatusUnauthorized, bad.Code)

	registered, err := env.audit.List(t.Context(), audit.Filter{EventType: audit.EventTypeRegister})
	require.NoError(t, err)
	require.Len(t, registered, 1)
	assert.Equal(t, audit.EventStatusSuccess, registered[0].Status)
	assert.Equal(t, "ada@example.com", registered[0].Email)
	assert.NotEmpty(t, registered[0].RequestID)

	logins, err := env.audit.List(t.Context(), audit.Filter{EventType: audit.EventTypeLogin})
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.NotEmpty(t, logins[0].UserID)

	failures, err := env.audit.List(t.Context(), audit.Filter{EventType: audit.EventTypeLoginFailed})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, audit.EventStatusDenied, failures[0].Status)
}
