package server

import (
	"context"
	"errors"
	iofs "io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/odvcencio/pagecast/pkg/logging"
	"github.com/odvcencio/pagecast/pkg/stream"
)

// Config controls the HTTP/WebSocket server behavior.
type Config struct {
	BindAddress    string
	StaticDir      string
	AllowedOrigins []string
	EnableMetrics  bool
}

// Server hosts the viewer WebSocket endpoint and the static viewer UI.
type Server struct {
	cfg        Config
	registry   *stream.Registry
	session    *stream.Session
	logger     *logging.Logger
	httpServer *http.Server
}

// New constructs a server over the given registry and session.
func New(cfg Config, registry *stream.Registry, session *stream.Session, logger *logging.Logger) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:8000"
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		session:  session,
		logger:   logger,
	}
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	router := s.buildRouter()

	// H2C lets WebSocket upgrades survive reverse proxies that speak
	// cleartext HTTP/2.
	h2s := &http2.Server{}
	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           h2c.NewHandler(router, h2s),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info(logging.CategoryServer, "server_started", "serving viewers", map[string]any{
			"bind": s.cfg.BindAddress,
		})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) buildRouter() *chi.Mux {
	router := chi.NewRouter()
	router.Get("/healthz", s.handleHealthz)
	if s.cfg.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	router.Get("/ws", s.handleWS)
	s.mountViewerUI(router)
	return router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) mountViewerUI(router *chi.Mux) {
	staticDir := strings.TrimSpace(s.cfg.StaticDir)
	var uiFS iofs.FS
	if staticDir != "" {
		info, err := os.Stat(staticDir)
		if err != nil || !info.IsDir() {
			s.logger.Warn(logging.CategoryServer, "static_dir_unavailable", "falling back to embedded viewer", map[string]any{
				"static_dir": staticDir,
			})
			staticDir = ""
		}
	}
	if staticDir != "" {
		uiFS = os.DirFS(staticDir)
	}
	if uiFS == nil {
		embeddedFS, err := GetEmbeddedUI()
		if err != nil {
			s.logger.Error(logging.CategoryServer, "embedded_ui_failed", err.Error(), nil)
			return
		}
		uiFS = embeddedFS
	}

	fileServer := http.FileServer(http.FS(uiFS))
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		requested := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if requested == "" || requested == "." {
			requested = "index.html"
		}
		if info, err := iofs.Stat(uiFS, requested); err == nil && !info.IsDir() {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/" + requested
			fileServer.ServeHTTP(w, r2)
			return
		}
		http.NotFound(w, r)
	})
}
