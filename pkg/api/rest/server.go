package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/therealutkarshpriyadarshi/dci/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/dci/pkg/config"
	"github.com/therealutkarshpriyadarshi/dci/pkg/observability"
	"github.com/therealutkarshpriyadarshi/dci/pkg/search"
	"github.com/therealutkarshpriyadarshi/dci/pkg/tenant"
)

// Server represents the HTTP API server
type Server struct {
	config     *config.Config
	handler    *Handler
	tenants    *tenant.Manager
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *observability.Logger
}

// NewServer creates a new API server. metrics may be nil to disable
// instrumentation (they register against the global Prometheus registry,
// so the caller owns their lifetime).
func NewServer(cfg *config.Config, metrics *observability.Metrics) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tenants := tenant.NewManager(cfg.Server.MaxNamespaces)

	var cache *search.QueryCache
	if cfg.Cache.Enabled {
		cache = search.NewQueryCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	}

	logger := observability.GetGlobalLogger()
	handler := NewHandler(cfg, tenants, cache, metrics, logger)

	server := &Server{
		config:  cfg,
		handler: handler,
		tenants: tenants,
		mux:     http.NewServeMux(),
		logger:  logger,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/stats", s.handler.GetStats)
	s.mux.HandleFunc("/v1/stats/", s.handler.GetStats)

	s.mux.HandleFunc("/v1/index/add", s.handler.Add)
	s.mux.HandleFunc("/v1/index/query", s.handler.Query)
	s.mux.HandleFunc("/v1/index/clear", s.handler.Clear)

	s.mux.Handle("/metrics", promhttp.Handler())
}

// withMiddleware wraps the handler with all middleware
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	// Applied in reverse order (last one wraps first)

	// 1. Authentication (innermost, runs last)
	handler = middleware.AuthMiddleware(middleware.AuthConfig{
		Enabled:     s.config.Server.AuthEnabled,
		JWTSecret:   s.config.Server.JWTSecret,
		PublicPaths: s.config.Server.PublicPaths,
		AdminPaths:  s.config.Server.AdminPaths,
	})(handler)

	// 2. Rate limiting
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:        s.config.Server.RateLimitEnabled,
		RequestsPerSec: s.config.Server.RateLimitPerSec,
		Burst:          s.config.Server.RateLimitBurst,
	})
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	// 3. CORS
	if s.config.Server.CORSEnabled {
		handler = corsMiddleware(s.config.Server.CORSOrigins)(handler)
	}

	// 4. Access logging
	handler = s.loggingMiddleware(handler)

	// 5. Request id (outermost)
	handler = middleware.RequestIDMiddleware(handler)

	return handler
}

// Handler returns the fully wrapped HTTP handler, used by tests to serve
// the API without binding a socket
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Infof("DCI API server listening on %s", s.config.Server.Address())

	var err error
	if s.config.Server.EnableTLS {
		err = s.httpServer.ListenAndServeTLS(s.config.Server.CertFile, s.config.Server.KeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs all HTTP requests with their request id
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     wrapped.statusCode,
			"duration":   time.Since(start),
			"request_id": middleware.GetRequestID(r.Context()),
		})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
