// Package main is the entry point for datahub, a hierarchical,
// path-addressable resource tree for administering inputs, outputs, and
// derived observations, with optional NATS-backed change notification.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/c360/datahub/config"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/restree"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "datahub"
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
		slog.Error("datahub exited with an error", "error", err)
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
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader("DATAHUB").LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Debug("loaded configuration", "config", cfg.String())

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	registry := metric.NewMetricsRegistry()
	metricsServer, err := startMetricsServer(cfg.Metrics, registry, logger)
	if err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	defer func() { _ = metricsServer.Stop() }()

	tree := restree.New(cfg, logger)
	tree.SetMetrics(registry.CoreMetrics())

	ctx := context.Background()
	natsClient, notifier, err := setupNotifier(ctx, cfg.NATS, logger)
	if err != nil {
		return fmt.Errorf("set up NATS notifier: %w", err)
	}
	if notifier != nil {
		tree.SetNotifier(notifier)
		defer notifier.Close()
	}
	if natsClient != nil {
		defer func() { _ = natsClient.Close(context.Background()) }()
	}

	stopShapeReporter := reportShapePeriodically(tree, 15*time.Second)
	defer stopShapeReporter()

	slog.Info("datahub started", "version", Version, "metrics_addr", metricsServer.Address())

	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-signalCtx.Done()

	slog.Info("received shutdown signal, shutting down")
	return nil
}

// startMetricsServer parses cfg.ListenAddr ("host:port") and starts the
// Prometheus HTTP server in the background, logging (not failing) if it
// later exits abnormally.
func startMetricsServer(cfg config.MetricsConfig, registry *metric.MetricsRegistry, logger *slog.Logger) (*metric.Server, error) {
	_, portStr, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("parse metrics.listen_addr %q: %w", cfg.ListenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse metrics port %q: %w", portStr, err)
	}

	server := metric.NewServer(port, cfg.Path, registry)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return server, nil
}

// setupNotifier connects to NATS and wraps the connection in a change
// notifier when cfg.URL is set; both return values are nil when the
// notifier is disabled and change dispatch stays in-process only.
func setupNotifier(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*natsclient.Client, *restree.Notifier, error) {
	if cfg.URL == "" {
		logger.Info("nats notifier disabled (no nats.url configured)")
		return nil, nil, nil
	}

	client, err := natsclient.NewClient(cfg.URL,
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	logger.Info("connected to NATS", "url", cfg.URL, "subject", cfg.Subject)
	return client, restree.NewNotifier(client, cfg.Subject, logger), nil
}

// reportShapePeriodically refreshes the tree's shape gauges on a ticker,
// returning a stop function that halts the background goroutine.
func reportShapePeriodically(tree *restree.Tree, interval time.Duration) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tree.ReportShapeMetrics()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
