package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/reelgate/reelgate/pkg/audit"
	"github.com/reelgate/reelgate/pkg/auth"
	"github.com/reelgate/reelgate/pkg/contextkeys"
	"github.com/reelgate/reelgate/pkg/httputil"
	"github.com/reelgate/reelgate/pkg/observability"
	"github.com/reelgate/reelgate/pkg/sso"
	"github.com/reelgate/reelgate/pkg/storage"
)

// loginStateTTL bounds how long an OAuth redirect round trip may take.
const loginStateTTL = 10 * time.Minute

// errBadLoginState is the internal cause for a missing, reused, or expired
// OAuth state value.
var errBadLoginState = errors.New("unknown or expired login state")

func errProviderDenied(code string) error {
	return fmt.Errorf("provider returned error %q", code)
}

// AuthHandlers handles authentication-related HTTP requests.
type AuthHandlers struct {
	store    storage.CredentialStore
	strategy auth.Strategy
	resolver *auth.ScopeResolver
	issuer   *auth.Issuer
	binder   *auth.SessionBinder

	// provider is nil when external sign-in is disabled; the Google routes
	// are not registered in that case.
	provider    sso.Provider
	provisioner *sso.Provisioner

	logger  *observability.Logger
	metrics *observability.Metrics
	audit   audit.Logger
	now     func() time.Time
}

// AuthHandlersConfig carries the collaborators for NewAuthHandlers.
type AuthHandlersConfig struct {
	Store       storage.CredentialStore
	Strategy    auth.Strategy
	Resolver    *auth.ScopeResolver
	Issuer      *auth.Issuer
	Binder      *auth.SessionBinder
	Provider    sso.Provider
	Provisioner *sso.Provisioner
	Logger      *observability.Logger
	Metrics     *observability.Metrics

	// Audit may be nil; recording is then disabled.
	Audit audit.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(cfg AuthHandlersConfig) *AuthHandlers {
	if cfg.Audit == nil {
		cfg.Audit = audit.NopLogger{}
	}
	return &AuthHandlers{
		store:       cfg.Store,
		strategy:    cfg.Strategy,
		resolver:    cfg.Resolver,
		issuer:      cfg.Issuer,
		binder:      cfg.Binder,
		provider:    cfg.Provider,
		provisioner: cfg.Provisioner,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		now:         time.Now,
	}
}

// record persists an audit event; failures are logged, never surfaced.
func (h *AuthHandlers) record(r *http.Request, event *audit.Event) {
	event.RequestID = contextkeys.GetRequestID(r.Context())
	event.IPAddress = r.RemoteAddr
	if err := h.audit.Record(r.Context(), event); err != nil {
		h.logger.WithError(err).Warn("audit record failed")
	}
}

// RegisterRoutes registers authentication routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.register).Methods("POST")
	router.HandleFunc("/api/auth/login", h.login).Methods("POST")

	if h.provider != nil {
		router.HandleFunc("/api/auth/google", h.googleLogin).Methods("GET")
		router.HandleFunc("/api/auth/google/callback", h.googleCallback).Methods("GET")
	}
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAuthError(w, err)
		return
	}

	ctx := r.Context()

	existing, err := h.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		h.fail(w, "registration lookup failed", auth.ErrInternal(err), nil)
		h.metrics.ObserveRegistration(observability.OutcomeError)
		return
	}
	if existing != nil {
		h.record(r, &audit.Event{
			EventType: audit.EventTypeRegisterConflict,
			Status:    audit.EventStatusDenied,
			Email:     req.Email,
		})
		httputil.WriteAuthError(w, auth.ErrConflict("user already exists"))
		h.metrics.ObserveRegistration("conflict")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, "password hashing failed", auth.ErrInternal(err), nil)
		h.metrics.ObserveRegistration(observability.OutcomeError)
		return
	}

	id, err := h.store.CreateUser(ctx, storage.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, storage.ErrDuplicateUser) {
		// Lost the check-then-create race; same outward answer as the check.
		h.record(r, &audit.Event{
			EventType: audit.EventTypeRegisterConflict,
			Status:    audit.EventStatusDenied,
			Email:     req.Email,
		})
		httputil.WriteAuthError(w, auth.ErrConflict("user already exists"))
		h.metrics.ObserveRegistration("conflict")
		return
	}
	if err != nil {
		h.fail(w, "user creation failed", auth.ErrInternal(err), nil)
		h.metrics.ObserveRegistration(observability.OutcomeError)
		return
	}

	h.record(r, &audit.Event{
		EventType: audit.EventTypeRegister,
		Status:    audit.EventStatusSuccess,
		UserID:    id,
		Email:     req.Email,
	})
	h.metrics.ObserveRegistration(observability.OutcomeSuccess)
	httputil.WriteCreated(w, httputil.DataResponse{ //nolint:errcheck
		Data:    RegisteredUser{ID: id},
		Message: "user created",
	})
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAuthError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteAuthError(w, err)
		return
	}

	ctx := r.Context()

	principal, err := h.strategy.Authenticate(ctx, auth.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.record(r, &audit.Event{
			EventType: audit.EventTypeLoginFailed,
			Status:    audit.EventStatusDenied,
			Email:     req.Email,
			Message:   auth.KindOf(err).String(),
		})
		h.fail(w, "password authentication failed", err, map[string]interface{}{"email": req.Email})
		h.metrics.ObserveLogin("password", outcomeFor(err))
		return
	}

	apiKey, err := h.resolver.Resolve(ctx, httputil.ParseQueryString(r, "API_KEY_TOKEN", ""))
	if err != nil {
		h.fail(w, "scope resolution failed", err, map[string]interface{}{"subject": principal.ID})
		h.metrics.ObserveLogin("password", outcomeFor(err))
		return
	}

	token, err := h.issuer.Issue(principal, apiKey.Scopes)
	if err != nil {
		h.fail(w, "token issuance failed", err, map[string]interface{}{"subject": principal.ID})
		h.metrics.ObserveLogin("password", outcomeFor(err))
		return
	}

	if err := h.store.TouchLastLogin(ctx, principal.ID); err != nil {
		// Best effort; the login itself already succeeded.
		h.logger.WithError(err).Warn("failed to record login time")
	}

	h.record(r, &audit.Event{
		EventType: audit.EventTypeLogin,
		Status:    audit.EventStatusSuccess,
		UserID:    principal.ID,
		Email:     principal.Email,
	})
	h.binder.Bind(w, token, req.RememberMe)
	h.metrics.ObserveLogin("password", observability.OutcomeSuccess)
	h.metrics.TokensIssuedTotal.Inc()
	httputil.WriteSuccess(w, TokenResponse{Token: token}) //nolint:errcheck
}

// googleLogin handles GET /api/auth/google
func (h *AuthHandlers) googleLogin(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	state := storage.LoginState{
		State:      uuid.NewString(),
		Provider:   h.provider.Name(),
		RememberMe: httputil.ParseQueryBool(r, "rememberMe", false),
		APIKey:     httputil.ParseQueryString(r, "API_KEY_TOKEN", ""),
		CreatedAt:  now,
		ExpiresAt:  now.Add(loginStateTTL),
	}

	if err := h.store.SaveLoginState(r.Context(), state); err != nil {
		h.fail(w, "login state save failed", auth.ErrInternal(err), nil)
		return
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state.State), http.StatusFound)
}

// googleCallback handles GET /api/auth/google/callback
func (h *AuthHandlers) googleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := httputil.ParseQueryString(r, "error", ""); errParam != "" {
		h.fail(w, "provider denied sign-in", auth.ErrUnauthenticated(errProviderDenied(errParam)), nil)
		h.metrics.ObserveLogin("oidc", observability.OutcomeUnauthenticated)
		return
	}

	state, err := h.store.ConsumeLoginState(ctx, httputil.ParseQueryString(r, "state", ""))
	if err != nil {
		h.fail(w, "login state lookup failed", auth.ErrInternal(err), nil)
		h.metrics.ObserveLogin("oidc", observability.OutcomeError)
		return
	}
	if state == nil || state.ExpiresAt.Before(h.now()) {
		h.fail(w, "unknown or expired login state", auth.ErrUnauthenticated(errBadLoginState), nil)
		h.metrics.ObserveLogin("oidc", observability.OutcomeUnauthenticated)
		return
	}

	identity, err := h.provider.Exchange(ctx, httputil.ParseQueryString(r, "code", ""))
	if err != nil {
		h.fail(w, "code exchange failed", err, nil)
		h.metrics.ObserveLogin("oidc", outcomeFor(err))
		return
	}

	user, err := h.provisioner.FindOrProvision(ctx, identity)
	if err != nil {
		h.record(r, &audit.Event{
			EventType: audit.EventTypeOAuthLoginFailed,
			Status:    audit.EventStatusFailure,
			Email:     identity.Email,
			Message:   auth.KindOf(err).String(),
		})
		h.fail(w, "user provisioning failed", err, map[string]interface{}{"email": identity.Email})
		h.metrics.ObserveLogin("oidc", outcomeFor(err))
		return
	}

	resp := CallbackResponse{Data: CallbackData{User: user}}

	// A token is issued only when the initiating request carried an API key
	// token; without one there is no scope set to assert.
	if state.APIKey != "" {
		apiKey, err := h.resolver.Resolve(ctx, state.APIKey)
		if err != nil {
			h.fail(w, "scope resolution failed", err, map[string]interface{}{"subject": user.ID})
			h.metrics.ObserveLogin("oidc", outcomeFor(err))
			return
		}

		token, err := h.issuer.Issue(auth.PrincipalFromUser(user), apiKey.Scopes)
		if err != nil {
			h.fail(w, "token issuance failed", err, map[string]interface{}{"subject": user.ID})
			h.metrics.ObserveLogin("oidc", outcomeFor(err))
			return
		}

		h.binder.Bind(w, token, state.RememberMe)
		h.metrics.TokensIssuedTotal.Inc()
		h.record(r, &audit.Event{
			EventType: audit.EventTypeTokenIssued,
			Status:    audit.EventStatusSuccess,
			UserID:    user.ID,
			Email:     user.Email,
		})
		resp.Token = token
	}

	h.record(r, &audit.Event{
		EventType: audit.EventTypeOAuthLogin,
		Status:    audit.EventStatusSuccess,
		UserID:    user.ID,
		Email:     user.Email,
	})
	h.metrics.ObserveLogin("oidc", observability.OutcomeSuccess)
	httputil.WriteCreated(w, resp) //nolint:errcheck
}

// fail logs the internal cause and writes the caller-safe translation.
func (h *AuthHandlers) fail(w http.ResponseWriter, msg string, err error, fields map[string]interface{}) {
	logger := h.logger.WithError(err)
	if fields != nil {
		logger = logger.WithFields(fields)
	}
	if auth.KindOf(err) == auth.KindInternal {
		logger.Error(msg)
	} else {
		logger.Debug(msg)
	}
	httputil.WriteAuthError(w, err)
}

// outcomeFor maps a pipeline error to a metric outcome label.
func outcomeFor(err error) string {
	switch auth.KindOf(err) {
	case auth.KindUnauthenticated:
		return observability.OutcomeUnauthenticated
	case auth.KindUnauthorized:
		return observability.OutcomeUnauthorized
	default:
		return observability.OutcomeError
	}
}
