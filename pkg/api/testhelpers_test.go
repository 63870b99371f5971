package api

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/reelgate/reelgate/pkg/audit"
	"github.com/reelgate/reelgate/pkg/auth"
	"github.com/reelgate/reelgate/pkg/observability"
	"github.com/reelgate/reelgate/pkg/sso"
	"github.com/reelgate/reelgate/pkg/storage"
)

// stubProvider fakes the OIDC round trip for handler tests.
type stubProvider struct {
	identity    *sso.Identity
	exchangeErr error
	gotCode     string
}

func (p *stubProvider) Name() string { return "google" }

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*sso.Identity, error) {
	p.gotCode = code
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.identity, nil
}

type testEnv struct {
	server   *Server
	store    *storage.SQLStore
	issuer   *auth.Issuer
	provider *stubProvider
	audit    *audit.DBLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// A second pool connection would see a different empty in-memory DB.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewSQLStore(db)
	require.NoError(t, err)

	issuer, err := auth.NewIssuer("test-secret")
	require.NoError(t, err)

	provider := &stubProvider{
		identity: &sso.Identity{Subject: "google-sub-1", Name: "Grace Hopper", Email: "grace@example.com"},
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	auditLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	handlers := NewAuthHandlers(AuthHandlersConfig{
		Store:       store,
		Strategy:    auth.NewPasswordStrategy(store),
		Resolver:    auth.NewScopeResolver(store),
		Issuer:      issuer,
		Binder:      auth.NewSessionBinder(false),
		Provider:    provider,
		Provisioner: sso.NewProvisioner(store),
		Logger:      logger,
		Metrics:     metrics,
		Audit:       auditLogger,
	})

	return &testEnv{
		server:   NewServer(handlers, logger, metrics),
		store:    store,
		issuer:   issuer,
		provider: provider,
		audit:    auditLogger,
	}
}

func (e *testEnv) seedAPIKey(t *testing.T, token string, scopes []string) {
	t.Helper()
	require.NoError(t, e.store.CreateAPIKey(context.Background(), &auth.APIKey{Token: token, Scopes: scopes}))
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}
