// Package api exposes the HTTP interface for the audit service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/audit"
	"github.com/pageaudit/pageaudit/internal/config"
	"github.com/pageaudit/pageaudit/internal/metrics"
	"github.com/pageaudit/pageaudit/internal/ratelimit"
	"github.com/pageaudit/pageaudit/internal/scheduler"
)

// Pinger is the slice of the cache backend the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the scheduler, cache, and rate limiter.
type Server struct {
	router    chi.Router
	scheduler *scheduler.Scheduler
	cache     audit.Cache
	limiter   *ratelimit.Limiter
	pinger    Pinger
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The pinger may be
// nil when the cache backend has no health check.
func NewServer(
	sched *scheduler.Scheduler,
	cache audit.Cache,
	limiter *ratelimit.Limiter,
	pinger Pinger,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scheduler: sched,
		cache:     cache,
		limiter:   limiter,
		pinger:    pinger,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/audit", s.handleAudit)
		r.Get("/audit/stream", s.handleAuditStream)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// A dead cache backend degrades to misses, so readiness only reports it.
	status := "ready"
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.scheduler.Stats())
}

// handleAudit serves the synchronous path: admission, cache check, submit,
// then block until the job settles.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	req, err := parseAuditRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if ok := s.admitClient(w, r); !ok {
		return
	}

	fingerprint := audit.Fingerprint(req)
	if report, hit := s.cache.Get(r.Context(), fingerprint); hit {
		metrics.ObserveCacheLookup(true)
		w.Header().Set("X-Cache", "HIT")
		s.writeJSON(w, http.StatusOK, report)
		return
	}
	metrics.ObserveCacheLookup(false)

	job, err := s.scheduler.Submit(req)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	report, err := job.Wait(r.Context())
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	w.Header().Set("X-Cache", "MISS")
	s.writeJSON(w, http.StatusOK, report)
}

// admitClient runs the rate check and writes the 429 on rejection.
func (s *Server) admitClient(w http.ResponseWriter, r *http.Request) bool {
	decision := s.limiter.Check(clientID(r))
	if decision.Allowed {
		return true
	}
	metrics.ObserveRateLimited()
	s.writeTaxonomyError(w, &audit.RateLimitError{RetryAfter: decision.RetryAfter})
	return false
}

// writeTaxonomyError maps the error taxonomy onto distinct status codes.
func (s *Server) writeTaxonomyError(w http.ResponseWriter, err error) {
	var rateErr *audit.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		retry := int(rateErr.RetryAfter.Round(time.Second).Seconds())
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, audit.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, "audit queue is full, try again later")
	case errors.Is(err, audit.ErrTimeout):
		s.writeError(w, http.StatusGatewayTimeout, "the audit did not finish in time")
	case errors.Is(err, audit.ErrUnreachable):
		s.writeError(w, http.StatusBadGateway, "the target page could not be reached")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		var engineErr *audit.EngineError
		if errors.As(err, &engineErr) {
			s.writeError(w, http.StatusBadGateway, "the audit failed")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseAuditRequest(r *http.Request) (audit.Request, error) {
	q := r.URL.Query()
	target := strings.TrimSpace(q.Get("url"))
	cats, err := audit.ParseCategories(q.Get("categories"))
	if err != nil {
		return audit.Request{}, err
	}
	req := audit.Request{URL: target, Categories: cats}
	if err := req.Validate(); err != nil {
		return audit.Request{}, err
	}
	return req, nil
}

// clientID extracts the caller-supplied address used as the rate limit key.
// Spoofable; accepted as the limiter's security boundary.
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
