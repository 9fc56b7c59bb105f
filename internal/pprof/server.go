package pprof

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/watchhub/signalhub/internal/config"
)

const readTimeout = 3 * time.Second

// CreatePProfServer serves net/http/pprof endpoints for debugging a running
// hub instance. It is bound to config.PProf.Bind (127.0.0.1 by default) and
// is expected to run behind an operator's own access controls, not exposed
// publicly.
func CreatePProfServer(cfg *config.Config) {
	if !cfg.PProf.Enabled {
		return
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.Metrics.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("pprof"))
	}

	if err := r.SetTrustedProxies(nil); err != nil {
		slog.Error("failed setting trusted proxies", "error", err)
	}

	pprof.Register(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.PProf.Bind, cfg.PProf.Port),
		Handler:           r,
		ReadHeaderTimeout: readTimeout,
	}
	slog.Info("PProf Server Listening", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("pprof server stopped", "error", err)
	}
}
