package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"treasury/internal/budget"
	"treasury/internal/cache"
	"treasury/internal/identity"
	"treasury/internal/log"
	"treasury/internal/metrics"
	"treasury/internal/middleware/ratelimit"
	"treasury/internal/middleware/security"
	"treasury/internal/middleware/trace"
	"treasury/internal/receipts"
	"treasury/internal/report"
	"treasury/internal/storage"
	appweb "treasury/web"
)

// Deps are the collaborators the console serves from. Receipts and Metrics
// may be nil.
type Deps struct {
	Repo     *budget.Repository
	Form     *budget.Form
	Store    storage.Store
	Receipts receipts.Store
	Identity *identity.Provider
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	// APIKey, when set, is required on mutating /api/ requests.
	APIKey    string
	RateLimit ratelimit.Config
}

// Server is the budget console: htmx pages and partials, the JSON API,
// receipts and the operational endpoints.
type Server struct {
	http.Server
	templates *template.Template

	repo     *budget.Repository
	form     *budget.Form
	store    storage.Store
	receipts receipts.Store
	ids      *identity.Provider
	metrics  *metrics.Metrics
	logger   *log.Logger
	events   *log.StructuredLogger
	// views caches built report views per filter for the current snapshot.
	views    *cache.LRU[string, report.View]

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires every route.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Repo == nil || d.Form == nil || d.Store == nil {
		return nil, fmt.Errorf("http server: repository, form and store are required")
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	if d.Identity == nil {
		d.Identity = identity.NewProvider("Treasurer", "officer")
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := d.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		templates: t,
		repo:      d.Repo,
		form:      d.Form,
		store:     d.Store,
		receipts:  d.Receipts,
		ids:       d.Identity,
		metrics:   d.Metrics,
		logger:    logger,
		events:    log.NewStructuredLogger(d.Logger),
		views:     cache.NewLRU[string, report.View](64),
		limiter:   ratelimit.NewLimiter(d.RateLimit),
		detector:  security.NewDetector(),
		started:   time.Now(),
		now:       time.Now,
	}
	s.tracer = trace.NewMiddleware(d.Logger, s.detector.ClientIP)
	s.Handler = s.routes(d.APIKey)
	return s, nil
}

func (s *Server) routes(apiKey string) http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticCache(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	// Pages and partials
	s.handle(mux, "GET /{$}", s.handleIndex)
	s.handle(mux, "GET /analytics", s.handleAnalytics)
	s.handle(mux, "GET /ui/budgets", s.handleBudgetList)
	s.handle(mux, "GET /ui/stats", s.handleStats)
	s.handle(mux, "GET /ui/budgets/new", s.handleNewForm)
	s.handle(mux, "GET /ui/budgets/{id}/edit", s.handleEditForm)

	// Console mutations
	s.handle(mux, "POST /budgets", s.handleCreateBudget)
	s.handle(mux, "POST /budgets/refresh", s.handleRefresh)
	s.handle(mux, "POST /budgets/{id}", s.handleUpdateBudget)
	s.handle(mux, "DELETE /budgets/{id}", s.handleDeleteBudget)
	s.handle(mux, "GET /budgets/export.csv", s.handleExport)

	// JSON API
	s.handle(mux, "GET /api/budgets", s.handleAPIList)
	s.handle(mux, "GET /api/budgets/{id}", s.handleAPIGet)
	s.handle(mux, "POST /api/budgets", s.handleAPICreate)
	s.handle(mux, "PUT /api/budgets/{id}", s.handleAPIUpdate)
	s.handle(mux, "DELETE /api/budgets/{id}", s.handleAPIDelete)
	s.handle(mux, "GET /api/stats", s.handleAPIStats)

	// Receipts
	s.handle(mux, "POST /receipts", s.handleUploadReceipt)
	s.handle(mux, "GET /receipts/{key}", s.handleReceipt)

	// Operations
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = log.ComponentMiddleware(log.ComponentHTTP)(h)
	h = s.ids.Middleware(h)
	h = security.RequireAPIKey(apiKey)(h)
	h = s.limiter.Middleware(s.detector.ClientIP, s.onRateLimited)(h)
	h = s.screen(h)
	h = s.tracer.Handler(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	return h
}

// handle registers fn and records its latency under the route pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		fn(rw, r)
		s.metrics.ObserveHTTP(pattern, rw.statusCode, time.Since(start))
	}))
}

// screen logs requests that look like probes. They are still served; the
// router rejects unknown paths on its own.
func (s *Server) screen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := s.detector.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldClientIP, s.detector.ClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(r *http.Request, ip string) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, ip,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
}

// Shutdown stops accepting requests and the rate limiter cleanup. It is safe
// to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
