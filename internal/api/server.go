// Package api serves the wallet REST surface consumed by the web client.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/metrics"
	"wallet/internal/middleware/ratelimit"
	"wallet/internal/middleware/security"
	"wallet/internal/middleware/trace"
)

// Ledger is the domain service behind the handlers.
type Ledger interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListBudgets(ctx context.Context) (core.Budgets, error)
	CreateBudget(ctx context.Context, b core.Budget) error
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, category string) error

	Ping(ctx context.Context) error
}

// Options configures optional server collaborators.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// RateLimit caps mutating requests per client per minute; 0 uses the
	// limiter default.
	RateLimit int
}

type Server struct {
	http.Server
	ledger  Ledger
	logger  *log.Logger
	metrics *metrics.Metrics

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		ledger:    ledger,
		logger:    logger.WithComponent(log.ComponentAPI),
		metrics:   opts.Metrics,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		startedAt: time.Now(),
	}

	var onSuspicious func(string)
	if s.metrics != nil {
		onSuspicious = s.metrics.ObserveSuspicious
	}
	s.detector = security.NewDetector(onSuspicious)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("PUT /api/budgets/{category}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{category}", s.handleDeleteBudget)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.limited, s.onRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP).Middleware(handler)
	if s.metrics != nil {
		handler = s.metrics.Middleware(handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// limited selects the mutating requests that count against the limit. The
// web client calls from a trusted network on behalf of all its users, so
// its own requests are exempt; forwarded clients are still limited.
func (s *Server) limited(r *http.Request) bool {
	return ratelimit.Mutating(r) && !s.detector.IsTrustedCaller(r)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	if s.metrics != nil {
		s.metrics.ObserveRateLimited()
	}
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
