// Command squadd serves the squad engine to a virtual tabletop host over HTTP
// and a websocket event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"squadcore/internal/archive"
	"squadcore/internal/blob"
	"squadcore/internal/config"
	"squadcore/internal/core"
	"squadcore/internal/host"
	"squadcore/internal/logging"
	"squadcore/plugins/drawsteel"
)

const serviceName = "squadd"

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("squadd: %v", err)
	}
	logger, err := logging.NewZap(cfg.LogLevel)
	if err != nil {
		config.Exitf("squadd: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("squadd stopped", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.ZapLogger) error {
	tracer, shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	store, closer, err := core.OpenPersistentStore(ctx, cfg, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = closer.Close() }()

	prom := core.NewPrometheusRecorder()
	hub := host.NewHub(logger.With("component", "hub"))
	defer hub.Close()

	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithTracer(tracer),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{prom, core.NewExpvarMetricsRecorder("squadd")}),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
		core.WithRenderer(hub),
		core.WithNotifier(hub),
		core.WithHighlightObserver(hub.Highlight),
		core.WithGridSize(cfg.GridSize),
	)
	meta, err := svc.InstallPlugin(drawsteel.New())
	if err != nil {
		return fmt.Errorf("install plugin: %w", err)
	}
	logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "rules", meta.Rules)

	blobs, err := blob.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	arc := archive.New(store, blobs, archive.WithLogger(logger))

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: host.NewServer(svc, hub,
			host.WithArchive(arc),
			host.WithMetricsHandler(prom.Handler()),
			host.WithLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "blob", blobs.Driver(), "tracing", cfg.Tracing)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
