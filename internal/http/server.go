package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"conto/internal/metrics"
	"conto/internal/middleware/ratelimit"
	"conto/internal/middleware/security"
	"conto/internal/middleware/trace"
	"conto/internal/report"
	"conto/internal/rules"
	"conto/internal/services"

	applog "conto/internal/log"
)

// Services are the application operations the API exposes.
type Services struct {
	Transactions *services.TransactionService
	Imports      *services.ImportService
	Settings     *services.SettingsService
	Rules        *rules.Engine
}

type Options struct {
	Addr           string
	MaxUploadBytes int64
	RateLimitRPM   int
	Names          report.Names
	Metrics        *metrics.Metrics
	Logger         *applog.Logger
	// Ready reports whether dependencies are usable; nil means always ready.
	Ready func(context.Context) error
}

type Server struct {
	http.Server
	svc         Services
	opts        Options
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(svc Services, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		svc:         svc,
		opts:        opts,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:    security.NewDetector(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(opts.Logger.WithComponent(applog.ComponentHTTP), s.detector.ExtractClientIP, opts.Metrics).Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.opts.Metrics.Handler())

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleCategorize)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/imports", s.handleImportPreview)
	mux.HandleFunc("POST /api/imports/{id}/commit", s.handleImportCommit)
	mux.HandleFunc("DELETE /api/imports/{id}", s.handleImportDiscard)

	mux.HandleFunc("GET /api/settlement", s.handleSettlement)
	mux.HandleFunc("GET /api/settlement.pdf", s.handleSettlementPDF)

	mux.HandleFunc("GET /api/settings/proportions", s.handleGetProportions)
	mux.HandleFunc("PUT /api/settings/proportions", s.handlePutProportions)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("DELETE /api/rules/{merchant}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/rules/apply", s.handleApplyRules)
	mux.HandleFunc("POST /api/card-rules", s.handleCreateCardRule)
	mux.HandleFunc("DELETE /api/card-rules/{card}", s.handleDeleteCardRule)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
