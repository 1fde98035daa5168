// Package http is the JSON API: authentication, case and payout CRUD,
// expenses, dashboards and CSV exports.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"casetrack/internal/auth"
	"casetrack/internal/cache"
	"casetrack/internal/derive"
	"casetrack/internal/report"
	"casetrack/internal/storage"
)

const (
	dashboardCacheSize = 100
	dashboardCacheTTL  = 5 * time.Minute
	cacheSweepEvery    = 10 * time.Minute
)

type Server struct {
	http.Server
	store       *storage.Repository
	deriver     *derive.Deriver
	aggregator  *report.Aggregator
	dashboards  *report.Dashboards
	tokens      *auth.Tokens
	rateLimiter *rateLimiter

	// Dashboard and analytics reads are cached between writes.
	analyticsCache *cache.TTLCache[[]report.MonthSummary]
	adminCache     *cache.TTLCache[adminDashboardResponse]
	userCache      *cache.TTLCache[report.UserDashboard]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

func NewServer(addr string, store *storage.Repository, deriver *derive.Deriver, aggregator *report.Aggregator, dashboards *report.Dashboards, tokens *auth.Tokens) *Server {
	router := mux.NewRouter()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: router,
		},
		store:            store,
		deriver:          deriver,
		aggregator:       aggregator,
		dashboards:       dashboards,
		tokens:           tokens,
		rateLimiter:      newRateLimiter(),
		analyticsCache:   cache.New[[]report.MonthSummary](dashboardCacheSize, dashboardCacheTTL),
		adminCache:       cache.New[adminDashboardResponse](dashboardCacheSize, dashboardCacheTTL),
		userCache:        cache.New[report.UserDashboard](dashboardCacheSize, dashboardCacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	router.Use(s.withRequestContext)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.withAuth)

	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)

	api.HandleFunc("/cases", s.handleListCases).Methods(http.MethodGet)
	api.HandleFunc("/cases", s.handleCreateCase).Methods(http.MethodPost)
	api.HandleFunc("/cases/{product}/{id:[0-9]+}", s.handleGetCase).Methods(http.MethodGet)
	api.HandleFunc("/cases/{product}/{id:[0-9]+}", s.handleUpdateCase).Methods(http.MethodPut)
	api.HandleFunc("/cases/{product}/{id:[0-9]+}", s.handleDeleteCase).Methods(http.MethodDelete)

	api.HandleFunc("/payouts", s.handleListPayouts).Methods(http.MethodGet)
	api.HandleFunc("/payouts", s.handleCreatePayout).Methods(http.MethodPost)
	api.HandleFunc("/payouts/{id:[0-9]+}", s.handleGetPayout).Methods(http.MethodGet)
	api.HandleFunc("/payouts/{id:[0-9]+}", s.handleUpdatePayout).Methods(http.MethodPut)
	api.HandleFunc("/payouts/{id:[0-9]+}", s.handleDeletePayout).Methods(http.MethodDelete)
	api.HandleFunc("/payouts/{id:[0-9]+}/process", s.handleProcessPayout).Methods(http.MethodPost)

	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleGetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleUpdateExpense).Methods(http.MethodPut)
	api.HandleFunc("/expenses/{id:[0-9]+}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/analytics/branches", s.handleTopBranches).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/admin", s.handleAdminDashboard).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/user/{id:[0-9]+}", s.handleUserDashboard).Methods(http.MethodGet)
	api.HandleFunc("/export/{type}", s.handleExport).Methods(http.MethodGet)

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(cacheSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purged := s.analyticsCache.PurgeExpired() +
				s.adminCache.PurgeExpired() +
				s.userCache.PurgeExpired()
			if purged > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", purged)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// flushCaches drops all cached read models. Called after any write that
// changes cases, payouts or expenses.
func (s *Server) flushCaches() {
	s.analyticsCache.Flush()
	s.adminCache.Flush()
	s.userCache.Flush()
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type requestIDKey struct{}

// withRequestContext adds request IDs, security headers, request logging
// and rate limiting on mutating methods.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		mutating := r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete
		if mutating && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(ctx, w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	})
}

// withAuth verifies the bearer token and attaches the caller identity.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			respondError(r.Context(), w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		id, err := s.tokens.Parse(token)
		if err != nil {
			respondError(r.Context(), w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CaseTotals(r.Context()); err != nil {
		respondError(r.Context(), w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
