// Package server is the development backend: the HTTP API the admin client talks to,
// backed by the sqlite store and a blob store for uploaded images.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"shopadmin/internal/blob"
	"shopadmin/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Addr   string
	Secret []byte
	// TokenTTL defaults to 30 days.
	TokenTTL time.Duration
	Logger   *slog.Logger
	// Registry receives the HTTP collectors and backs /metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
}

type Server struct {
	cfg      Config
	db       *store.DB
	blobs    blob.Store
	logger   *slog.Logger
	metrics  *httpMetrics
	registry *prometheus.Registry
	strict   *bluemonday.Policy
	ugc      *bluemonday.Policy
	now      func() time.Time
}

func New(cfg Config, db *store.DB, blobs blob.Store) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if db == nil {
		return nil, errors.New("server: store is nil")
	}
	if blobs == nil {
		return nil, errors.New("server: blob store is nil")
	}
	if len(cfg.Secret) < 16 {
		return nil, errors.New("server: secret must be at least 16 bytes")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		db:       db,
		blobs:    blobs,
		logger:   logger,
		metrics:  m,
		registry: reg,
		strict:   bluemonday.StrictPolicy(),
		ugc:      bluemonday.UGCPolicy(),
		now:      time.Now,
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)
	r.Use(s.authenticate)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/uploads/{key}", s.handleUploadGet)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", s.handleRegister)
		r.Post("/auth", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", s.handleProfileGet)
			r.Put("/profile", s.handleProfileUpdate)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", s.handleUserList)
			r.Get("/{id}", s.handleUserGet)
			r.Put("/{id}", s.handleUserUpdate)
			r.Delete("/{id}", s.handleUserDelete)
		})
	})

	r.Route("/api/category", func(r chi.Router) {
		r.Get("/", s.handleCategoryList)
		r.Get("/categories", s.handleCategoryList)
		r.Get("/{id}", s.handleCategoryGet)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/", s.handleCategoryCreate)
			r.Put("/{id}", s.handleCategoryUpdate)
			r.Delete("/{id}", s.handleCategoryDelete)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", s.handleProductList)
		r.Get("/{id}", s.handleProductGet)
		r.Get("/{id}/description", s.handleProductDescription)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/", s.handleProductCreate)
			r.Put("/{id}", s.handleProductUpdate)
			r.Delete("/{id}", s.handleProductDelete)
		})
	})

	r.With(requireAdmin).Post("/api/uploads", s.handleUpload)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found - "+r.URL.Path)
	})
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to five
// seconds.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		writeMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
