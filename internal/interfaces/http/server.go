// Package http wires the scoring API onto a gorilla/mux router with
// request identification, structured logging, rate limiting, and a
// websocket live feed.
package http

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/beargallbladder/fleetapitest-sub000/internal/application"
	"github.com/beargallbladder/fleetapitest-sub000/internal/cache"
	"github.com/beargallbladder/fleetapitest-sub000/internal/config"
	"github.com/beargallbladder/fleetapitest-sub000/internal/interfaces/http/handlers"
	"github.com/beargallbladder/fleetapitest-sub000/internal/metrics"
	"github.com/beargallbladder/fleetapitest-sub000/internal/net/ratelimit"
	"github.com/beargallbladder/fleetapitest-sub000/internal/persistence"
)

// apiTimeout bounds one API request. The live feed and metrics routes sit
// outside the API subrouter and are exempt.
const apiTimeout = 5 * time.Second

// Server represents the scoring HTTP server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *handlers.Handlers
	hub      *handlers.Hub
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	config   config.ServerSection
}

// Options carries the server dependencies. Service is required; the rest
// degrade gracefully when nil.
type Options struct {
	Service  *application.Service
	Health   persistence.LedgerHealth
	Metrics  *metrics.Metrics
	Cache    cache.Cache
	CacheTTL time.Duration
	Version  string
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg config.ServerSection, opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("application service is required")
	}

	// Check if the address is available
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("address %s is busy or unavailable: %w", cfg.Addr, err)
	}
	listener.Close()

	hub := handlers.NewHub()
	handlerManager := handlers.NewHandlers(handlers.Options{
		Service:  opts.Service,
		Health:   opts.Health,
		Metrics:  opts.Metrics,
		Cache:    opts.Cache,
		CacheTTL: opts.CacheTTL,
		Hub:      hub,
		Version:  opts.Version,
	})

	server := &Server{
		router:   mux.NewRouter(),
		handlers: handlerManager,
		hub:      hub,
		limiter:  ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		metrics:  opts.Metrics,
		config:   cfg,
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Middleware for all routes. Request IDs are assigned first so the
	// logger can report them.
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	// Probe, metrics, and live feed routes bypass rate limiting and the
	// API timeout.
	s.router.HandleFunc("/health", jsonHandler(s.handlers.Health)).Methods("GET")
	s.router.HandleFunc("/live", s.handlers.Live).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	// API routes (JSON only)
	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/risk", s.handlers.Risk).Methods("POST")
	api.HandleFunc("/fleet", s.handlers.Fleet).Methods("POST")
	api.HandleFunc("/stressors", s.handlers.Stressors).Methods("POST")

	api.HandleFunc("/compare", s.handlers.Compare).Methods("GET")
	api.HandleFunc("/leads", s.handlers.Leads).Methods("GET")
	api.HandleFunc("/leads/{zip}", s.handlers.Lead).Methods("GET")

	api.HandleFunc("/weather", s.handlers.GetWeather).Methods("GET")
	api.HandleFunc("/weather", s.handlers.PutWeather).Methods("PUT")

	api.HandleFunc("/vehicles/{vin}/history", s.handlers.History).Methods("GET")
	api.HandleFunc("/recent", s.handlers.Recent).Methods("GET")

	// 404 handler
	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// requestIDMiddleware adds unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), "request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs all requests and feeds the request
// duration histogram.
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID, _ := r.Context().Value("request_id").(string)

		// Capture response status
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		if s.metrics != nil {
			s.metrics.ObserveRequest(routeTemplate(r), strconv.Itoa(wrapper.statusCode), duration)
		}

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

// routeTemplate resolves the matched route pattern so the duration
// histogram stays low-cardinality across path variables.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// rateLimitMiddleware applies the per-client limiter to API routes.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientAddr(r)) {
			s.handlers.TooManyRequests(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr picks the rate limit key for a request: the first
// X-Forwarded-For hop when present, otherwise the peer address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// timeoutMiddleware enforces request timeouts.
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware adds CORS headers so browser dashboards on other hosts
// can call the API.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jsonContentTypeMiddleware sets JSON content type for API responses.
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// jsonHandler sets the JSON content type for routes registered outside
// the API subrouter.
func jsonHandler(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.Addr).Msg("starting http server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, disconnecting live feed
// clients first.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// responseWrapper captures HTTP status codes for logging.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the underlying connection.
// The embedded interface alone does not satisfy http.Hijacker.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
