package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reelgate/reelgate/pkg/httputil"
	"github.com/reelgate/reelgate/pkg/middleware"
	"github.com/reelgate/reelgate/pkg/observability"
)

// Server represents the credential-issuance API server.
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates the API server and registers all routes.
func NewServer(handlers *AuthHandlers, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}

	// Runs inside the router so the matched route template is available for
	// the metrics label.
	s.router.Use(observability.HTTPMetricsMiddleware(metrics, routeTemplate))

	handlers.RegisterRoutes(s.router)

	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		middleware.CORS,
		httputil.MaxBytesMiddleware(1<<20),
	)(s.router)

	return s
}

// RouteRegistrar is an interface for types that can register routes.
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers additional routes on the server's router.
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// Handler returns the fully wrapped handler chain for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteNotFound(w, "not found")
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
