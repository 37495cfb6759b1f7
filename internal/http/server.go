package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/storage"
)

// Server serves the REST API. It embeds http.Server so callers can use
// ListenAndServe directly.
type Server struct {
	http.Server

	repo   *storage.SQLiteRepository
	poster *ledger.Poster
	tokens *auth.TokenIssuer
	logger *log.Logger

	authLimiter  *ratelimit.Limiter
	summaryCache *cache.LRU[summaryResponse]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, repo *storage.SQLiteRepository, poster *ledger.Poster, tokens *auth.TokenIssuer, logger *log.Logger, authRequestsPerMinute int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:   repo,
		poster: poster,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentHTTP),
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: authRequestsPerMinute,
		}),
		summaryCache: cache.NewLRU[summaryResponse](500, 5*time.Minute),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// credential endpoints are rate limited per client IP
	limited := s.authLimiter.Middleware(clientIP, nil)
	mux.Handle("POST /api/v1/auth/signup", limited(http.HandlerFunc(s.handleSignup)))
	mux.Handle("POST /api/v1/auth/signin", limited(http.HandlerFunc(s.handleSignin)))

	mux.HandleFunc("GET /api/v1/account", s.requireAuth(s.handleListAccounts))
	mux.HandleFunc("POST /api/v1/account", s.requireAuth(s.handleCreateAccount))
	mux.HandleFunc("PUT /api/v1/account/{id}", s.requireAuth(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/v1/account/{id}", s.requireAuth(s.handleDeleteAccount))

	mux.HandleFunc("POST /api/v1/transaction", s.requireAuth(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/v1/transaction", s.requireAuth(s.handleListTransactions))
	mux.HandleFunc("GET /api/v1/transaction/summary", s.requireAuth(s.handleSummary))
	mux.HandleFunc("GET /api/v1/transaction/summary/filter", s.requireAuth(s.handleSummaryFilter))
	mux.HandleFunc("GET /api/v1/transaction/{id}", s.requireAuth(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/v1/transaction/{id}", s.requireAuth(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/v1/transaction/{id}", s.requireAuth(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/v1/budget", s.requireAuth(s.handleCreateBudget))
	mux.HandleFunc("GET /api/v1/budget", s.requireAuth(s.handleListBudgets))
	mux.HandleFunc("GET /api/v1/budget/{id}", s.requireAuth(s.handleGetBudget))
	mux.HandleFunc("PUT /api/v1/budget/{id}", s.requireAuth(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/v1/budget/{id}", s.requireAuth(s.handleDeleteBudget))

	mux.HandleFunc("POST /api/v1/goals", s.requireAuth(s.handleCreateGoal))
	mux.HandleFunc("GET /api/v1/goals", s.requireAuth(s.handleListGoals))
	mux.HandleFunc("GET /api/v1/goals/{id}", s.requireAuth(s.handleGetGoal))
	mux.HandleFunc("PUT /api/v1/goals/{id}", s.requireAuth(s.handleUpdateGoal))
	mux.HandleFunc("DELETE /api/v1/goals/{id}", s.requireAuth(s.handleDeleteGoal))

	tracer := trace.NewMiddleware(logger, clientIP)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(securityHeaders(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// invalidateSummaries drops a user's cached summaries after any posting.
func (s *Server) invalidateSummaries(userID string) {
	s.summaryCache.InvalidatePrefix(userID + ":")
}

// Shutdown stops the HTTP server and the background middleware goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
