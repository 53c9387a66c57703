// Package server exposes the HTTP control API: triggering runs,
// inspecting run state and metrics, managing the publish queue, and
// streaming progress events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/content-agent/internal/config"
	"github.com/jonathan/content-agent/internal/queue"
	"github.com/jonathan/content-agent/internal/runstore"
	"github.com/jonathan/content-agent/internal/server/ratelimit"
	"github.com/jonathan/content-agent/internal/trigger"
)

// Server is the HTTP control plane over a running agent.
type Server struct {
	httpServer  *http.Server
	store       *runstore.Store
	queue       *queue.Queue
	runner      *trigger.Runner
	hub         *Hub
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService // nil disables auth
	log         *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port int
	// RunTimeout is the worst-case duration of one blocking manual run,
	// derived from the stage retry budget. The response write timeout
	// covers it so a long run cannot sever the POST /runs reply.
	RunTimeout time.Duration
}

// New creates a server over the given collaborators. hub receives the
// coordinator's progress events and feeds the SSE endpoint.
func New(cfg Config, store *runstore.Store, q *queue.Queue, runner *trigger.Runner, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		store:  store,
		queue:  q,
		runner: runner,
		hub:    hub,
		log:    log,
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	// Auth is optional: without JWT_SECRET the control API is open,
	// which is the expected setup for local single-operator use.
	if jwtConfig, err := config.NewJWTConfig(); err == nil {
		s.jwtService = NewJWTService(jwtConfig)
	} else {
		log.Info("JWT auth disabled", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", s.withAuth(s.handleTriggerRun))
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("GET /scheduled", s.handleListScheduled)
	mux.HandleFunc("GET /scheduled/{id}", s.handleGetScheduled)
	mux.HandleFunc("POST /scheduled/{id}/cancel", s.withAuth(s.handleCancelScheduled))
	mux.HandleFunc("POST /scheduled/{id}/reschedule", s.withAuth(s.handleRescheduleScheduled))
	mux.HandleFunc("POST /scheduled/{id}/dispatch", s.withAuth(s.handleDispatchScheduled))

	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Manual runs block until the pipeline finishes, so the write timeout
	// must outlast the full retry budget.
	writeTimeout := 300 * time.Second
	if cfg.RunTimeout > 0 {
		writeTimeout = cfg.RunTimeout + 30*time.Second
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start listens until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal("server error", zap.Error(err))
		}
	}()

	<-stop
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the per-client token buckets.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging logs each request with timing.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	})
}

// withAuth requires a bearer token on mutating endpoints when JWT auth
// is configured.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.jwtService == nil {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.errorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := s.jwtService.ValidateToken(token); err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("error encoding JSON response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID identifies the client by IP address.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.log.Warn("rate limit exceeded",
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
