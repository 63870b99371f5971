package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/reelgate/reelgate/pkg/api"
	"github.com/reelgate/reelgate/pkg/audit"
	"github.com/reelgate/reelgate/pkg/auth"
	"github.com/reelgate/reelgate/pkg/config"
	"github.com/reelgate/reelgate/pkg/observability"
	"github.com/reelgate/reelgate/pkg/sso"
	"github.com/reelgate/reelgate/pkg/storage"
)

// auditRetention is how long recorded credential events are kept.
const auditRetention = 90 * 24 * time.Hour

func main() {
	configPath := flag.String("config", "", "Path to optional YAML config file (env overrides it)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	metrics := observability.NewMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is a no-op unless enabled.
	shutdownTracing, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logrus.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Storage.PostgresURL)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logrus.Fatalf("Failed to ping database: %v", err)
	}

	store, err := storage.NewSQLStore(db)
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}

	// Redis is optional; without it the key cache degrades to local-only.
	redisClient, err := storage.NewRedisClient(ctx, cfg.Storage.RedisURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	keyCache := storage.NewKeyCache(store, redisClient, cfg.Storage)
	keyCache.OnHit = metrics.KeyCacheHitsTotal.Inc
	keyCache.OnMiss = metrics.KeyCacheMissesTotal.Inc

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logrus.Fatalf("Failed to initialize audit log: %v", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		logrus.Fatalf("Failed to create token issuer: %v", err)
	}

	var provider sso.Provider
	var provisioner *sso.Provisioner
	if cfg.OIDC.Enabled {
		ssoConfig := sso.GoogleConfig(cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		ssoConfig.IssuerURL = cfg.OIDC.IssuerURL
		ssoConfig.Timeout = cfg.OIDC.ProviderTimeout

		discoverCtx, cancel := context.WithTimeout(ctx, cfg.OIDC.ProviderTimeout)
		oidcProvider, err := sso.NewOIDCProvider(discoverCtx, "google", ssoConfig)
		cancel()
		if err != nil {
			logrus.Fatalf("Failed to initialize OIDC provider: %v", err)
		}
		provider = oidcProvider
		provisioner = sso.NewProvisioner(store)
		logger.WithField("issuer", cfg.OIDC.IssuerURL).Info("external sign-in enabled")
	}

	handlers := api.NewAuthHandlers(api.AuthHandlersConfig{
		Store:       store,
		Strategy:    auth.NewPasswordStrategy(store),
		Resolver:    auth.NewScopeResolver(keyCache),
		Issuer:      issuer,
		Binder:      auth.NewSessionBinder(cfg.Auth.DevMode),
		Provider:    provider,
		Provisioner: provisioner,
		Logger:      logger,
		Metrics:     metrics,
		Audit:       auditLogger,
	})
	server := api.NewServer(handlers, logger, metrics)

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(server.Handler(), "reelgate"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthMux(db, redisClient, metrics, cfg.Observability.MetricsEnabled),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Expired OAuth login states are garbage; sweep them every few minutes.
	janitor := cron.New()
	if _, err := janitor.AddFunc("*/5 * * * *", func() {
		pruned, err := store.PruneExpiredLoginStates(context.Background(), time.Now())
		if err != nil {
			logger.WithError(err).Warn("login state prune failed")
			return
		}
		if pruned > 0 {
			logger.WithField("pruned", pruned).Debug("pruned expired login states")
		}
	}); err != nil {
		logrus.Fatalf("Failed to schedule login state janitor: %v", err)
	}
	if _, err := janitor.AddFunc("30 3 * * *", func() {
		pruned, err := auditLogger.Prune(context.Background(), auditRetention)
		if err != nil {
			logger.WithError(err).Warn("audit prune failed")
			return
		}
		logger.WithField("pruned", pruned).Info("pruned audit events")
	}); err != nil {
		logrus.Fatalf("Failed to schedule audit janitor: %v", err)
	}
	janitor.Start()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info("shutting down")
		janitor.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		apiErr := apiServer.Shutdown(shutdownCtx)
		healthErr := healthServer.Shutdown(shutdownCtx)
		var tracingErr error
		if shutdownTracing != nil {
			tracingErr = shutdownTracing(shutdownCtx)
		}
		return errors.Join(apiErr, healthErr, tracingErr)
	})

	if err := group.Wait(); err != nil {
		logrus.Fatalf("Server error: %v", err)
	}
	logger.Info("shutdown complete")
}

func healthMux(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics, metricsEnabled bool) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if metricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}
