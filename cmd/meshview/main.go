// Package main implements the entry point for the meshview service.
// Meshview consumes mesh radio telemetry from a NATS stream, reconciles
// it into live and durable network state, and streams updates to
// websocket subscribers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/meshview/config"
	"github.com/c360/meshview/engine"
	"github.com/c360/meshview/fanout"
	ingest "github.com/c360/meshview/input/nats"
	"github.com/c360/meshview/live"
	"github.com/c360/meshview/metric"
	wsout "github.com/c360/meshview/output/websocket"
	"github.com/c360/meshview/session"
	"github.com/c360/meshview/store"
)

const (
	Version = "0.1.0"
	appName = "meshview"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("meshview failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	logger := setupLogger(cfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting meshview",
		"config_path", cliCfg.ConfigPath,
		"database", cfg.Database,
		"nats_url", cfg.NATS.URL,
		"subject", cfg.NATS.Subject)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	return runService(signalCtx, cfg, logger, cliCfg.ShutdownTimeout)
}

func runService(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	st, err := store.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	lv := live.NewStore(
		live.WithMessageRing(cfg.MessageRingSize),
		live.WithFreshnessWindow(cfg.FreshnessWindow()),
	)
	sessions := session.NewManager(st, lv, logger)

	var registry *metric.MetricsRegistry
	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Stop() }()
		logger.Info("metrics endpoint up", "address", metricsServer.Address())
	}

	hub := fanout.NewHub(
		fanout.WithLogger(logger),
		fanout.WithMetrics(registry),
		fanout.WithQueueSize(cfg.SubscriberQueueSize),
		fanout.WithSendTimeout(cfg.SendTimeout),
		fanout.WithSnapshot(func() fanout.Notification {
			snap := lv.Snapshot(cfg.SnapshotMessages)
			if sess, ok := sessions.Current(); ok {
				snap.Session = &sess
			}
			return fanout.SnapshotNotification(snap)
		}),
	)
	defer hub.Close()

	eng := engine.New(lv, st, sessions,
		engine.WithLogger(logger),
		engine.WithBroadcaster(hub),
		engine.WithMetrics(registry),
	)
	if cfg.LocalNodeID != "" {
		eng.SetLocalNode(cfg.LocalNodeID)
	}

	wsServer := wsout.NewServer(cfg.WebSocket.Port, cfg.WebSocket.Path, hub, logger)
	if err := wsServer.Initialize(); err != nil {
		return fmt.Errorf("initialize websocket server: %w", err)
	}
	if err := wsServer.Start(ctx); err != nil {
		return fmt.Errorf("start websocket server: %w", err)
	}
	defer func() { _ = wsServer.Stop(shutdownTimeout) }()

	in := ingest.NewIngest(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.Name, eng,
		ingest.WithLogger(logger),
		ingest.WithBroadcaster(hub),
		ingest.WithMetrics(registry),
	)
	if err := in.Initialize(); err != nil {
		return fmt.Errorf("initialize ingest: %w", err)
	}
	if err := in.Start(ctx); err != nil {
		return fmt.Errorf("start ingest: %w", err)
	}
	defer func() { _ = in.Stop(shutdownTimeout) }()

	if cfg.CleanupInterval > 0 {
		go runCleanup(ctx, st, cfg.Retention(), cfg.CleanupInterval, logger)
	}

	logger.Info("meshview started", "websocket_port", cfg.WebSocket.Port)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// runCleanup deletes rows older than the retention window on a fixed
// interval, logging what it removed.
func runCleanup(ctx context.Context, st *store.Store, retention, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := st.Cleanup(ctx, retention)
			if err != nil {
				logger.Error("retention cleanup failed", "error", err)
				continue
			}
			var total int64
			for _, n := range removed {
				total += n
			}
			if total > 0 {
				logger.Info("retention cleanup complete", "rows_removed", total)
			}
			if stats, err := st.DatabaseStats(ctx); err == nil {
				logger.Debug("database stats", "size_bytes", stats.SizeBytes)
			}
		}
	}
}
