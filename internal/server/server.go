package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	primevista "github.com/johann/primevista"
	"github.com/johann/primevista/internal/config"
	"github.com/johann/primevista/internal/storage"
	"github.com/johann/primevista/internal/uploads"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Server serves the landing page and the admin panel
type Server struct {
	cfg         *config.ServerConfig
	store       *storage.Storage
	uploads     *uploads.Uploader
	router      *gin.Engine
	renderer    *Renderer
	assets      fs.FS
	metrics     *Metrics
	sessions    *sessions
	rateLimiter *RateLimiter
	resources   []resource
	logger      zerolog.Logger
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// New creates a new server instance. The store must already be
// initialised; the server never creates tables.
func New(cfg *config.ServerConfig, store *storage.Storage, uploader *uploads.Uploader, logger zerolog.Logger) (*Server, error) {
	logger = logger.With().Str("component", "server").Logger()

	templates, err := primevista.Templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	assets, err := primevista.Assets()
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	renderer, err := NewRenderer(templates, cfg.PrettyHTML, logger)
	if err != nil {
		return nil, err
	}

	sess, ephemeral, err := newSessions(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		logger.Warn().Msg("session_secret not set; admin sessions end when the server restarts")
	}
	if cfg.AdminToken == "" {
		logger.Warn().Msg("admin_token not set; the admin panel is locked (run 'primevista token show')")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	s := &Server{
		cfg:         cfg,
		store:       store,
		uploads:     uploader,
		router:      router,
		renderer:    renderer,
		assets:      assets,
		metrics:     NewMetrics(store.Counts, logger),
		sessions:    sess,
		rateLimiter: NewRateLimiter(15 * time.Second),
		resources:   newResources(store),
		logger:      logger,
	}

	router.Use(s.requestLogger(), gin.Recovery())
	if cfg.Compression {
		router.Use(compress())
	}
	for _, r := range s.routes() {
		router.Handle(r.method, r.path, r.handlers...)
	}
	router.NoRoute(s.handleNotFound)

	return s, nil
}

// routes is the complete route table.
func (s *Server) routes() []route {
	admin := s.requireAdmin()

	routes := []route{
		{http.MethodGet, "/", []gin.HandlerFunc{s.handleIndex}},
		{http.MethodPost, "/newsletter/subscribe", []gin.HandlerFunc{s.handleSubscribe}},
		{http.MethodPost, "/contact", []gin.HandlerFunc{s.handleContact}},
		{http.MethodGet, "/static/*filepath", []gin.HandlerFunc{s.handleStatic}},
		{http.MethodHead, "/static/*filepath", []gin.HandlerFunc{s.handleStatic}},
		{http.MethodGet, "/healthz", []gin.HandlerFunc{s.handleHealth}},

		{http.MethodGet, "/admin/login", []gin.HandlerFunc{s.handleLoginForm}},
		{http.MethodPost, "/admin/login", []gin.HandlerFunc{s.handleLogin}},
		{http.MethodPost, "/admin/logout", []gin.HandlerFunc{s.handleLogout}},
		{http.MethodGet, "/admin", []gin.HandlerFunc{admin, s.handleDashboard}},
	}

	for _, res := range s.resources {
		m := res.meta()
		base := "/admin/" + m.Slug
		routes = append(routes,
			route{http.MethodGet, base, []gin.HandlerFunc{admin, s.handleList(res)}},
			route{http.MethodPost, base + "/:id/delete", []gin.HandlerFunc{admin, s.handleDelete(res)}},
		)
		if m.Editable {
			routes = append(routes,
				route{http.MethodPost, base, []gin.HandlerFunc{admin, s.handleCreate(res)}},
				route{http.MethodGet, base + "/:id/edit", []gin.HandlerFunc{admin, s.handleEditForm(res)}},
				route{http.MethodPost, base + "/:id/edit", []gin.HandlerFunc{admin, s.handleUpdate(res)}},
			)
		}
	}
	return routes
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP (and metrics when configured) until ctx is cancelled,
// then shuts both listeners down gracefully.
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}}

	if addr := s.cfg.MetricsAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
		s.logger.Info().Str("addr", addr).Msg("prometheus metrics listening")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			s.logger.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		s.logger.Info().Msg("server stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Close releases background resources. The store is owned by the caller.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}
