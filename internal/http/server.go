package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"cashbook/internal/aggregate"
	"cashbook/internal/cache"
	"cashbook/internal/chart"
	"cashbook/internal/core"
	"cashbook/internal/log"
	"cashbook/internal/middleware/ratelimit"
	"cashbook/internal/middleware/security"
	"cashbook/internal/middleware/trace"
	"cashbook/internal/services"
	appweb "cashbook/web"
)

// Options configures the dashboard server. Zero values select defaults.
type Options struct {
	Addr        string
	WindowWidth int
	Location    *time.Location
	Formatter   *core.CurrencyFormatter
	Logger      *log.Logger

	// Ready reports whether the ledger backend is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	Now   func() time.Time

	ChartCacheSize int
	ChartCacheTTL  time.Duration
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

type appMetrics struct {
	recorded      atomic.Int64
	persistFailed atomic.Int64
	startedAt     time.Time
}

type Server struct {
	http.Server
	templates *template.Template

	ledger    *services.LedgerService
	engine    aggregate.Engine
	charts    *chart.Renderer
	formatter *core.CurrencyFormatter
	loc       *time.Location
	width     int
	now       func() time.Time
	ready     func(ctx context.Context) error

	chartCache   *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	logger       *log.Logger
	metrics      appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(ledger *services.LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Formatter == nil {
		opts.Formatter = core.DefaultCurrencyFormatter()
	}
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = aggregate.DefaultWindowWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ChartCacheSize <= 0 {
		opts.ChartCacheSize = 32
	}
	if opts.ChartCacheTTL <= 0 {
		opts.ChartCacheTTL = 10 * time.Minute
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:           ledger,
		engine:           aggregate.New(opts.Location),
		charts:           chart.NewRenderer(opts.Formatter),
		formatter:        opts.Formatter,
		loc:              opts.Location,
		width:            opts.WindowWidth,
		now:              opts.Now,
		ready:            opts.Ready,
		chartCache:       cache.NewLRUCache[[]byte](opts.ChartCacheSize, opts.ChartCacheTTL),
		cacheManager:     cache.NewManager(opts.Logger),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: security.NewDetector(),
		logger:           logger,
	}
	s.metrics.startedAt = time.Now()
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(opts.ChartCacheTTL)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /transactions/{category}", s.handleRecordTransaction)

	mux.HandleFunc("GET /api/summary", s.handleAPISummary)
	mux.HandleFunc("GET /api/months", s.handleAPIMonths)
	mux.HandleFunc("GET /api/window", s.handleAPIWindow)

	mux.HandleFunc("GET /charts/overview.png", s.handleOverviewChart)
	mux.HandleFunc("GET /charts/monthly.png", s.handleMonthlyChart)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited, http.MethodPost)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = s.securityDetector.Middleware(opts.Logger)(handler)
	handler = headers.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again in a minute.").
		Header("Retry-After", "60").
		Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// summary computes the aggregates for one consistent snapshot.
func (s *Server) summary(width int) (aggregate.Summary, uint64) {
	txs, revision := s.ledger.Snapshot()
	return s.engine.Summarize(txs, s.now(), width), revision
}
