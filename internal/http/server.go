package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/middleware/ratelimit"
	"orcamento/internal/middleware/security"
	"orcamento/internal/middleware/trace"
	"orcamento/internal/services"
	"orcamento/internal/sheets"
)

// Services are the application services the API exposes.
type Services struct {
	Planned    *services.PlannedService
	Expenses   *services.ExpenseService
	Taxonomy   *services.TaxonomyService
	Reports    *services.ReportService
	Imports    *services.ImportService
	Activities *services.ActivityService
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewServer. Hub, DB and Sheet may be nil.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *log.Logger
	Hub                *events.Hub
	DB                 Pinger
	// Sheet is the configured spreadsheet import source.
	Sheet sheets.RowReader
	Now   func() time.Time
}

type Server struct {
	http.Server
	svc      Services
	hub      *events.Hub
	db       Pinger
	sheet    sheets.RowReader
	now      func() time.Time
	started  time.Time
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// done ends open event streams, which would otherwise keep Shutdown
	// waiting until its deadline.
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	detector := security.NewDetector()
	s := &Server{
		svc:      svc,
		hub:      opts.Hub,
		db:       opts.DB,
		sheet:    opts.Sheet,
		now:      opts.Now,
		started:  time.Now(),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		done: make(chan struct{}),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	limited := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r))
		ErrorResponse(http.StatusTooManyRequests, "Muitas requisições. Tente novamente em instantes.").Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)

	var h http.Handler = mux
	h = limited(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.Middleware(opts.Logger, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("GET /api/month-view", s.handleMonthView)
	mux.HandleFunc("GET /api/planned-expenses", s.handleListPlanned)
	mux.HandleFunc("POST /api/planned-expenses", s.handleCreatePlanned)
	mux.HandleFunc("PUT /api/planned-expenses/{id}", s.handleUpdatePlanned)
	mux.HandleFunc("POST /api/planned-expenses/{id}/deactivate", s.handleSetPlannedActive(false))
	mux.HandleFunc("POST /api/planned-expenses/{id}/reactivate", s.handleSetPlannedActive(true))
	mux.HandleFunc("POST /api/planned-expenses/{id}/payments", s.handleConfirmPayment)
	mux.HandleFunc("DELETE /api/planned-expenses/{id}/payments", s.handleReversePayment)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("GET /api/categories/{id}/subcategories", s.handleListSubcategories)
	mux.HandleFunc("POST /api/categories/{id}/subcategories", s.handleCreateSubcategory)
	mux.HandleFunc("GET /api/subcategories", s.handleListSubcategories)
	mux.HandleFunc("DELETE /api/subcategories/{id}", s.handleDeleteSubcategory)

	mux.HandleFunc("GET /api/people", s.handleListPeople)
	mux.HandleFunc("POST /api/people", s.handleCreatePerson)
	mux.HandleFunc("PUT /api/people/{id}", s.handleUpdatePerson)
	mux.HandleFunc("DELETE /api/people/{id}", s.handleDeletePerson)

	mux.HandleFunc("GET /api/reports/month", s.handleMonthReport)
	mux.HandleFunc("GET /api/reports/year", s.handleYearReport)
	mux.HandleFunc("GET /api/activities", s.handleActivities)
	mux.HandleFunc("POST /api/import", s.handleImport)
}

// Shutdown ends event streams, stops the rate limiter and shuts the HTTP
// server down. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.db == nil {
		checks["database"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.db.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if s.svc.Reports != nil {
		checks["report_cache"] = map[string]any{"entries": s.svc.Reports.CachedYears()}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}
	if s.hub != nil {
		checks["event_subscribers"] = s.hub.Subscribers()
	}
	checks["import_source"] = s.sheet != nil

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	tm := s.tracer.GetMetrics()
	subscribers := 0
	if s.hub != nil {
		subscribers = s.hub.Subscribers()
	}
	cacheEntries := 0
	if s.svc.Reports != nil {
		cacheEntries = s.svc.Reports.CachedYears()
	}

	w.WriteHeader(http.StatusOK)
	metric := func(name, typ, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, typ, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", s.limiter.Hits())
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", s.detector.SuspiciousRequests())
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", s.limiter.ActiveClients())
	metric("report_cache_entries", "gauge", "Cached year reports", cacheEntries)
	metric("event_subscribers", "gauge", "Open change event streams", subscribers)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

// handleEvents streams committed changes as server-sent events until the
// client goes away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Notificações indisponíveis").Write(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalServerError("Streaming não suportado").Write(w)
		return
	}

	ch, cancel := s.hub.Subscribe(64)
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	logger := log.FromContext(r.Context())
	logger.DebugContext(r.Context(), "Event stream opened")

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.DebugContext(r.Context(), "Event stream closed by client")
			return
		case <-s.done:
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: change\ndata: %s\n\n", e.ID, data)
			flusher.Flush()
		}
	}
}
