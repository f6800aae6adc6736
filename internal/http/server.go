package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/render"
	appweb "ledger/web"
)

// ReadinessFunc reports whether the backing storage is usable.
type ReadinessFunc func(ctx context.Context) error

// Options configures a Server. Store and Renderer are required.
type Options struct {
	Addr        string
	Store       *ledger.Store
	Renderer    *render.Renderer
	Logger      *log.Logger
	RecentLimit int
	Ready       ReadinessFunc
	Clock       func() time.Time

	// Mutating requests allowed per client per minute; zero means 60.
	RateLimit int
}

type Server struct {
	http.Server
	store       *ledger.Store
	renderer    *render.Renderer
	templates   *template.Template
	logger      *log.Logger
	recentLimit int
	ready       ReadinessFunc
	now         func() time.Time

	chartCache  *cache.LRUCache[[]byte]
	cacheMgr    *cache.Manager
	unsubscribe func()

	rateLimiter *rateLimiter
	metrics     securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Renderer == nil {
		return nil, fmt.Errorf("http server: store and renderer are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RecentLimit < 1 {
		opts.RecentLimit = ledger.DefaultRecentLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RateLimit < 1 {
		opts.RateLimit = 60
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		store:       opts.Store,
		renderer:    opts.Renderer,
		templates:   t,
		logger:      logger,
		recentLimit: opts.RecentLimit,
		ready:       opts.Ready,
		now:         opts.Clock,
		chartCache:  cache.NewLRUCache[[]byte](64, 10*time.Minute),
		cacheMgr:    cache.NewManager(opts.Logger),
		rateLimiter: newRateLimiter(opts.RateLimit, time.Minute),
	}

	// Entries are keyed by version, so stale charts are never served;
	// purging only releases their memory.
	s.unsubscribe = s.store.Subscribe(func(snap ledger.Snapshot) {
		if n := s.chartCache.Purge(); n > 0 {
			st := s.chartCache.Stats()
			s.logger.Debug("Chart cache invalidated", log.FieldVersion, snap.Version,
				"entries", n, "hits", st.Hits, "misses", st.Misses)
		}
	})
	s.cacheMgr.Register(s.chartCache)
	s.cacheMgr.Start(context.Background(), 10*time.Minute)

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
	mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	}))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)
	mux.HandleFunc("GET /chart.svg", s.handleChart)
	mux.HandleFunc("GET /export.xlsx", s.handleExport)

	mux.HandleFunc("GET /api/transactions", s.handleAPIList)
	mux.HandleFunc("POST /api/transactions", s.handleAPICreate)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleAPIDelete)
	mux.HandleFunc("GET /api/summary", s.handleAPISummary)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.unsubscribe()
		s.cacheMgr.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"isIncome": func(t string) bool { return t == "income" },
}
