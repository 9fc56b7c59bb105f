// Package httpapi is the HTTP/WebSocket transport: device registration,
// pairing, status, the tunneled HTTP proxy frontend (internal/tunnel), and
// the `/ws/device` and `/ws/viewer` upgrade endpoints that feed the
// Signaling Router (spec.md §4.2, §4.4, §4.5, §4.7).
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/pairing"
	"github.com/watchhub/signalhub/internal/registry"
	"github.com/watchhub/signalhub/internal/signaling"
	"github.com/watchhub/signalhub/internal/store"
	"github.com/watchhub/signalhub/internal/tunnel"
)

const readHeaderTimeout = 5 * time.Second

// Server wraps a gin engine and its *http.Server lifecycle. It's built
// after the Connection Registry, Signaling Router, Pairing Service, and
// Tunnel Frontend already exist.
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	http     *http.Server
	registry *registry.Registry
	router   *signaling.Router
	store    store.Store
	pairing  *pairing.Service
	tunnel   *tunnel.Frontend
}

// New constructs the HTTP server and registers all routes. Call Start to
// begin listening.
func New(cfg *config.Config, reg *registry.Registry, router *signaling.Router, st store.Store, pairingSvc *pairing.Service, tunnelFrontend *tunnel.Frontend) *Server {
	if !cfg.HTTP.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.HTTP.Debug {
		engine.Use(gin.Logger())
	}
	if cfg.Metrics.OTLPEndpoint != "" {
		engine.Use(otelgin.Middleware("signalhub"))
	}
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		slog.Error("failed setting trusted proxies", "error", err)
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		registry: reg,
		router:   router,
		store:    st,
		pairing:  pairingSvc,
		tunnel:   tunnelFrontend,
	}

	engine.Use(corsMiddleware(cfg.CORSHosts))
	s.routes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port),
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Start begins serving in the background, returning once the listener is bound.
func (s *Server) Start() error {
	listener, err := newListener(s.http.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: bind %s: %w", s.http.Addr, err)
	}
	go func() {
		if err := s.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "error", err)
		}
	}()
	slog.Info("HTTP server listening", "address", s.http.Addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	if err := s.http.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}
}

// ServeHTTP lets tests drive the engine directly with httptest, without
// binding a real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}
