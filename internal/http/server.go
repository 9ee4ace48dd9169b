// Package http is the JSON API surface: authentication, transaction CRUD,
// the monthly dashboard, the category catalog and the spreadsheet export.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"duorico/internal/auth"
	"duorico/internal/core"
	applog "duorico/internal/log"
	"duorico/internal/metrics"
	"duorico/internal/middleware/ratelimit"
	"duorico/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type contextKey string

const viewerKey contextKey = "viewer"

// ReadyChecker reports whether a dependency can serve traffic. The storage
// repository's Ping satisfies it.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	auth         *auth.Service
	transactions *services.TransactionService
	ready        ReadyChecker
	limiter      *ratelimit.Limiter
}

func NewServer(authSvc *auth.Service, txSvc *services.TransactionService, ready ReadyChecker, limiter *ratelimit.Limiter) *Server {
	return &Server{auth: authSvc, transactions: txSvc, ready: ready, limiter: limiter}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(securityHeaders)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.mutationLimiter)
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/login", s.handleLogin)
			r.With(s.requireViewer).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireViewer)

			r.Route("/couple", func(r chi.Router) {
				r.Post("/pair", s.handlePair)
				r.Post("/unpair", s.handleUnpair)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", s.handleListTransactions)
				r.Post("/", s.handleCreateTransaction)
				r.Route("/series/{groupID}", func(r chi.Router) {
					r.Put("/", s.handleUpdateSeries)
					r.Delete("/", s.handleDeleteFutureInstallments)
				})
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetTransaction)
					r.Put("/", s.handleUpdateTransaction)
					r.Delete("/", s.handleDeleteTransaction)
				})
			})

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/categories", s.handleCategories)
			r.Get("/export", s.handleExport)
		})
	})

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable", "reason": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requireViewer resolves the bearer token into a core.Viewer and stores it in
// the request context. Requests without a valid token stop here.
func (s *Server) requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		viewer, err := s.auth.ResolveViewer(r.Context(), token)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), viewerKey, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func viewerFrom(r *http.Request) core.Viewer {
	v, _ := r.Context().Value(viewerKey).(core.Viewer)
	return v
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

// mutationLimiter rate limits state-changing methods only; reads stay free.
func (s *Server) mutationLimiter(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requestLogger attaches a request-scoped logger carrying the request id, so
// anything logging downstream tags its output with it, and emits one line per
// handled request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := applog.FromContext(r.Context()).With(
			"request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(applog.IntoContext(r.Context(), reqLog))

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(pattern, fmt.Sprintf("%dxx", ww.Status()/100)).Inc()
		metrics.HTTPDuration.WithLabelValues(pattern).Observe(duration.Seconds())

		reqLog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds())
	})
}

// periodFromQuery reads month and year query parameters, defaulting to the
// current month in UTC when both are absent.
func periodFromQuery(r *http.Request) (core.Period, error) {
	monthStr := r.URL.Query().Get("month")
	yearStr := r.URL.Query().Get("year")

	if monthStr == "" && yearStr == "" {
		now := time.Now().UTC()
		return core.Period{Month: int(now.Month()), Year: now.Year()}, nil
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return core.Period{}, core.ErrInvalidMonth
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return core.Period{}, core.ErrInvalidYear
	}
	p := core.Period{Month: month, Year: year}
	return p, p.Validate()
}
