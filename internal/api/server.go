// Package api provides the Scribe REST and websocket API server.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/Scribe/internal/cache"
	"github.com/FocuswithJustin/Scribe/internal/logging"
	"github.com/FocuswithJustin/Scribe/internal/server"
)

const (
	defaultMaxBody = 8 << 20
	// jobRetention is how long finished jobs stay queryable.
	jobRetention = time.Hour
)

// Server serves parse requests over HTTP and websocket.
type Server struct {
	cfg      Config
	results  *cache.ResultCache
	hub      *Hub
	jobs     *JobStore
	limiter  *RateLimiter
	upgrader websocket.Upgrader
	handler  http.Handler
	started  time.Time
}

// New validates cfg and builds a server. A nil results cache selects a
// memory-only one. The websocket hub starts immediately; Close stops it.
func New(cfg Config, results *cache.ResultCache) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled() {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, fmt.Errorf("TLS needs both a cert and a key file")
		}
		for _, f := range []string{cfg.TLS.CertFile, cfg.TLS.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				return nil, fmt.Errorf("TLS file: %w", err)
			}
		}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if results == nil {
		results = cache.NewResultCache(10*time.Minute, 256, nil)
	}

	s := &Server{
		cfg:     cfg,
		results: results,
		hub:     NewHub(),
		jobs:    NewJobStore(),
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
	}
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}
	s.handler = s.buildHandler()
	go s.hub.Run()
	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	var handler http.Handler = server.SecurityHeaders(server.APICSPConfig(), s.routes())
	handler = AuthMiddleware(s.cfg.Auth, handler)
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/formats", s.handleFormats)
	mux.HandleFunc("/parse", s.handleParse)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	return mux
}

// Run listens on the configured address until ctx is cancelled, then
// shuts down gracefully and closes the server.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled() {
			errc <- srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	protocol, wsProtocol := "http", "ws"
	if s.cfg.TLS.Enabled() {
		protocol, wsProtocol = "https", "wss"
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", s.cfg.Addr,
		"protocol", protocol,
		"websocket_protocol", wsProtocol,
		"auth", s.cfg.Auth.Enabled(),
		"rate_limit", s.cfg.RateLimitRequests,
		"allowed_origins", len(s.cfg.AllowedOrigins))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case err := <-errc:
			if stderrors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case now := <-ticker.C:
			if n := s.jobs.Prune(now.Add(-jobRetention)); n > 0 {
				logging.Debug("pruned finished jobs", "count", n)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// Close cancels running jobs and stops the hub and the rate limiter.
// The result cache is left open for its owner to close.
func (s *Server) Close() {
	s.jobs.CancelAll()
	s.hub.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
