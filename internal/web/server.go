package web

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewHandlers builds the web handlers with the embedded templates.
func NewHandlers(s Studio, cfg *config.Config, log *logging.Logger, version string) (*Handlers, error) {
	if log == nil {
		log = logging.Nop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log = log.With("component", "web")

	// Strip the "templates/" prefix
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	return &Handlers{
		store:    s,
		cfg:      cfg,
		log:      log,
		renderer: NewRenderer(templateSub, version, log),
	}, nil
}

// Routes returns the router for the web UI.
func (h *Handlers) Routes() http.Handler {
	// Strip the "static/" prefix
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-FS: %v", err))
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/", h.HandleLibrary)
	r.Post("/import", h.HandleImport)

	r.Get("/author", h.HandleAuthor)
	r.Post("/author", h.HandleAuthorSubmit)

	r.Route("/capsules/{id}", func(r chi.Router) {
		r.Get("/learn", h.HandleLearn)
		r.Post("/quiz", h.HandleQuiz)
		r.Post("/known", h.HandleKnown)
		r.Get("/export", h.HandleExport)
		r.Post("/delete", h.HandleDelete)
	})

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return r
}

// NewServer creates and configures the HTTP server for the Pocket web UI.
func NewServer(s Studio, cfg *config.Config, log *logging.Logger, version string) (*http.Server, error) {
	h, err := NewHandlers(s, cfg, log, version)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              h.cfg.WebAddr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request at info level.
func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		})
	}
}

// Run starts the HTTP server and shuts it down gracefully when ctx ends or
// on SIGINT/SIGTERM.
func Run(ctx context.Context, srv *http.Server, log *logging.Logger) error {
	if log == nil {
		log = logging.Nop()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("pocket UI running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		log.Warn("server is binding to all interfaces and may be accessible from the network", "addr", srv.Addr)
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
