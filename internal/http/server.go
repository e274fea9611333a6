package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"wallet/internal/auth"
	"wallet/internal/dashboard"
	"wallet/internal/log"
	"wallet/internal/metrics"
	"wallet/internal/middleware/ratelimit"
	"wallet/internal/middleware/security"
	"wallet/internal/middleware/trace"
	appweb "wallet/web"
)

// Options configures optional server collaborators.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Ready reports whether the REST backend answers; nil skips the check.
	Ready func(ctx context.Context) error
	// RateLimit caps mutating requests per client per minute; 0 uses the
	// limiter default.
	RateLimit int
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard *dashboard.Dashboard
	navigator *auth.Navigator
	ready     func(ctx context.Context) error
	logger    *log.Logger
	metrics   *metrics.Metrics

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. A template parse failure is logged and reported by /readyz.
func NewServer(addr string, dash *dashboard.Dashboard, nav *auth.Navigator, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		dashboard: dash,
		navigator: nav,
		ready:     opts.Ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		metrics:   opts.Metrics,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		startedAt: time.Now(),
	}

	var onSuspicious func(string)
	if s.metrics != nil {
		onSuspicious = s.metrics.ObserveSuspicious
	}
	s.detector = security.NewDetector(onSuspicious)

	t, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		s.logger.Error("Failed parsing templates",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).WithComponent(log.ComponentTemplate).ToSlice()...)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)

	mux.HandleFunc("GET /home", s.handleHome)
	mux.HandleFunc("POST /home/transactions", s.handleAddTransaction)
	mux.HandleFunc("POST /home/transactions/{id}/edit", s.handleEditTransaction)
	mux.HandleFunc("PUT /home/transactions/{id}", s.handleSaveTransaction)
	mux.HandleFunc("DELETE /home/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /home/budgets", s.handleAddBudget)
	mux.HandleFunc("POST /home/budgets/{category}/edit", s.handleEditBudget)
	mux.HandleFunc("PUT /home/budgets/{category}", s.handleSaveBudget)
	mux.HandleFunc("DELETE /home/budgets/{category}", s.handleDeleteBudget)
	mux.HandleFunc("POST /home/categories", s.handleAddCategory)
	mux.HandleFunc("DELETE /home/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Every other path, "/" included, renders nothing.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFound().Write(w)
	})

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, s.onRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
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
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	funcs := template.FuncMap{
		"pathEscape": url.PathEscape,
	}
	t, err := template.New("wallet").Funcs(funcs).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	if s.metrics != nil {
		s.metrics.ObserveRateLimited()
	}
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again in a minute.").Write(w)
}

// render executes a template into a buffer so a failing template never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		InternalServerError("Templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.NewFields().WithError(err, log.ErrorTypeInternal).WithOperation(log.OpRender).ToSlice()...)
		InternalServerError("Something went wrong rendering this page").Write(w)
		return
	}
	b.BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks templates and, when configured, the REST backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"templates": "ok", "backend": "ok"}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = http.StatusServiceUnavailable
	}
	if s.ready == nil {
		checks["backend"] = "not_configured"
	} else if err := s.ready(ctx); err != nil {
		checks["backend"] = "failed: " + err.Error()
		status = http.StatusServiceUnavailable
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{
		"status":    state,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
