package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/USA-RedDragon/configulator"
	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/db"
	"github.com/watchhub/signalhub/internal/httpapi"
	"github.com/watchhub/signalhub/internal/kv"
	"github.com/watchhub/signalhub/internal/metrics"
	"github.com/watchhub/signalhub/internal/pairing"
	"github.com/watchhub/signalhub/internal/pprof"
	"github.com/watchhub/signalhub/internal/pubsub"
	"github.com/watchhub/signalhub/internal/registry"
	"github.com/watchhub/signalhub/internal/signaling"
	"github.com/watchhub/signalhub/internal/store"
	"github.com/watchhub/signalhub/internal/tunnel"
)

// NewCommand builds the root "signalhub" command. It has no RunE of its
// own: operators run one of its two subcommands, `serve` for the hub or
// `device-agent` for the edge reconnecting client.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "signalhub",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newDeviceAgentCommand(version))
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "serve",
		Short:             "Run the signaling hub",
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	root := cmd.Root()
	fmt.Printf("signalhub - %s (%s)\n", root.Annotations["version"], root.Annotations["commit"])

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	cfg.ResolveSecrets()
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := cleanup(ctx); err != nil {
			slog.Error("failed to shut down tracer", "error", err)
		}
	}()

	startBackgroundServices(cfg)

	database, err := db.MakeDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	kvStore, err := kv.MakeKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to key-value store: %w", err)
	}

	pubsubClient, err := pubsub.MakePubSub(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to pubsub: %w", err)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	st := store.NewGormStore(database)
	reg := registry.New(m)
	router := signaling.New(st, kvStore, reg, m, cfg.Turn)
	pairingSvc := pairing.New(st, cfg.Pairing)
	tunnelFrontend := tunnel.New(reg, kvStore, m, cfg.Tunnel)

	server := httpapi.New(cfg, reg, router, st, pairingSvc, tunnelFrontend)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	scheduler, err := setupScheduler()
	if err != nil {
		return err
	}
	setupPresenceSweep(scheduler, reg)
	scheduler.Start()

	setupShutdownHandlers(ctx, scheduler, server, pubsubClient, kvStore, cleanup)
	return nil
}

// loadConfig loads the configuration from context, failing closed rather
// than falling back to a setup wizard: this hub has no interactive config UI.
func loadConfig(ctx context.Context) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}
	cfg, err := c.LoadWithoutValidation()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
}

func setupScheduler() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, nil
}

// presenceSweepInterval governs how often stale connections are evicted.
// heartbeatTimeout in internal/registry is 90s; sweeping at a third of that
// keeps eviction latency bounded without constant lock churn.
const presenceSweepInterval = 30 * time.Second

func setupPresenceSweep(scheduler gocron.Scheduler, reg *registry.Registry) {
	_, err := scheduler.NewJob(
		gocron.DurationJob(presenceSweepInterval),
		gocron.NewTask(func() {
			reg.SweepStaleConnections(context.Background())
		}),
	)
	if err != nil {
		slog.Error("failed to schedule presence sweep", "error", err)
	}
}

// setupTracing initializes OpenTelemetry tracing if configured. When
// tracing is not configured it returns a no-op cleanup function.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.Metrics.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	return initTracer(cfg)
}

// startBackgroundServices starts the metrics and pprof servers.
func startBackgroundServices(cfg *config.Config) {
	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			slog.Error("failed to start metrics server", "error", err)
		}
	}()
	go pprof.CreatePProfServer(cfg)
}

// setupShutdownHandlers blocks until SIGINT/SIGTERM/SIGQUIT/SIGHUP, then
// performs an orderly shutdown of the HTTP/WebSocket server and its
// downstream stores.
func setupShutdownHandlers(ctx context.Context, scheduler gocron.Scheduler, server *httpapi.Server, pubsubClient pubsub.PubSub, kvStore kv.KV, cleanup func(context.Context) error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	sig := <-sigCh
	slog.Error("shutting down due to signal", "signal", sig)

	const timeout = 10 * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var g errgroup.Group

	g.Go(func() error {
		if err := scheduler.StopJobs(); err != nil {
			slog.Error("failed to stop scheduler jobs", "error", err)
		}
		return scheduler.Shutdown()
	})

	g.Go(func() error {
		server.Stop(shutdownCtx)
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				return fmt.Errorf("close pubsub: %w", err)
			}
		}
		if kvStore != nil {
			if err := kvStore.Close(); err != nil {
				return fmt.Errorf("close kv: %w", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		if cleanup == nil {
			return nil
		}
		return cleanup(shutdownCtx)
	})

	c := make(chan error, 1)
	go func() { c <- g.Wait() }()
	select {
	case err := <-c:
		if err != nil {
			slog.Error("error during shutdown", "error", err)
		}
		slog.Info("all servers stopped, shutting down gracefully")
		os.Exit(0)
	case <-time.After(timeout):
		slog.Error("shutdown timed out, forcing exit")
		os.Exit(1)
	}
}

func initTracer(cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "signalhub"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resources: %w", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown, nil
}
