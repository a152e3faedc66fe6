// Package main implements the entry point for the SHFT telemetry daemon.
// The daemon consumes container telemetry from the event stream, routes
// readings to the subsystem state holders, persists history, and serves a
// live state-change feed to UI clients.
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

	"golang.org/x/sync/errgroup"

	"github.com/jeffbrin/SHFT/actuator"
	"github.com/jeffbrin/SHFT/component"
	"github.com/jeffbrin/SHFT/config"
	"github.com/jeffbrin/SHFT/ingest"
	"github.com/jeffbrin/SHFT/metric"
	"github.com/jeffbrin/SHFT/natsclient"
	"github.com/jeffbrin/SHFT/notify"
	"github.com/jeffbrin/SHFT/store"
	"github.com/jeffbrin/SHFT/stream"
	"github.com/jeffbrin/SHFT/subsystem"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "shft-telemetryd"
)

// defaultTelemetryInterval seeds the device's reporting cadence when the
// device-config bucket has none yet
const defaultTelemetryInterval = 30 * time.Second

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
		slog.Error("Daemon failed", "error", err, "exit_code", 1)
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

	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := cfg.Logging.Level
	if cliCfg.LogLevel != "" {
		logLevel = cliCfg.LogLevel
	}
	logFormat := cfg.Logging.Format
	if cliCfg.LogFormat != "" {
		logFormat = cliCfg.LogFormat
	}
	logger := setupLogger(logLevel, logFormat)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting telemetry daemon",
		"version", Version,
		"device_id", cfg.Device.ID,
		"config_path", cliCfg.ConfigPath)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	return runDaemon(signalCtx, cfg, logger, cliCfg.ShutdownTimeout)
}

// runDaemon wires the pipeline and runs it until the context is cancelled
func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithClientName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithDrainTimeout(cfg.NATS.DrainTimeout),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer func() { _ = natsClient.Close(context.Background()) }()

	registry := metric.NewMetricsRegistry()
	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: registry,
		Logger:          logger,
		DeviceID:        cfg.Device.ID,
	}

	pipeline, err := buildPipeline(ctx, cfg, deps)
	if err != nil {
		return err
	}

	monitor := metric.NewServer(cfg.Metrics.Addr, registry)
	for name, reporter := range pipeline.reporters {
		r := reporter
		monitor.RegisterHealthCheck(name, func() (bool, any) {
			h := r.Health()
			return h.Healthy, h
		})
	}

	for _, c := range pipeline.components {
		if err := c.component.Initialize(); err != nil {
			return fmt.Errorf("initialize %s: %w", c.name, err)
		}
	}
	started := make([]namedComponent, 0, len(pipeline.components))
	for _, c := range pipeline.components {
		if err := c.component.Start(ctx); err != nil {
			stopComponents(started, shutdownTimeout)
			return fmt.Errorf("start %s: %w", c.name, err)
		}
		started = append(started, c)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(monitor.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		return monitor.Stop(shutdownTimeout)
	})

	slog.Info("Telemetry daemon started",
		"metrics_addr", cfg.Metrics.Addr,
		"notify_addr", cfg.Notify.Addr)

	<-ctx.Done()
	slog.Info("Received shutdown signal")

	stopComponents(started, shutdownTimeout)
	pipeline.notifier.Close()

	if err := group.Wait(); err != nil {
		return fmt.Errorf("monitoring endpoint: %w", err)
	}
	slog.Info("Telemetry daemon shutdown complete")
	return nil
}

// namedComponent pairs a lifecycle component with its log name
type namedComponent struct {
	name      string
	component component.LifecycleComponent
}

// pipeline holds the wired daemon in start order
type pipeline struct {
	components []namedComponent
	reporters  map[string]component.HealthReporter
	notifier   *notify.Notifier
}

// buildPipeline constructs every component of the daemon. Order matters:
// stores come up before the holders that persist through them, the
// watermark is read before the stream starts delivering, and thresholds
// are loaded before any holder is observable.
func buildPipeline(ctx context.Context, cfg *config.Config, deps component.Dependencies) (*pipeline, error) {
	logger := deps.GetLogger()

	readingsKV, err := natsclient.NewKVStore(ctx, deps.NATSClient, natsclient.DefaultKVOptions(cfg.Store.ReadingsBucket))
	if err != nil {
		return nil, fmt.Errorf("open readings bucket: %w", err)
	}
	thresholdsKV, err := natsclient.NewKVStore(ctx, deps.NATSClient, natsclient.DefaultKVOptions(cfg.Store.ThresholdsBucket))
	if err != nil {
		return nil, fmt.Errorf("open thresholds bucket: %w", err)
	}
	deviceKV, err := natsclient.NewKVStore(ctx, deps.NATSClient, natsclient.DefaultKVOptions(cfg.Store.DeviceBucket))
	if err != nil {
		return nil, fmt.Errorf("open device-config bucket: %w", err)
	}

	hist := store.NewHistoricalStore(
		store.NewKVDataStore(readingsKV, logger),
		cfg.Store.Retention,
		logger,
		store.WithSweepInterval(cfg.Store.SweepInterval),
	)
	thresholdStore := store.NewThresholdStore(store.NewKVDataStore(thresholdsKV, logger), logger)

	deviceConfig := actuator.NewDeviceConfig(deviceKV, logger)
	if _, found, err := deviceConfig.TelemetryInterval(ctx); err != nil {
		return nil, fmt.Errorf("read telemetry interval: %w", err)
	} else if !found {
		if err := deviceConfig.SetTelemetryInterval(ctx, defaultTelemetryInterval); err != nil {
			return nil, fmt.Errorf("seed telemetry interval: %w", err)
		}
	}

	invoker := actuator.NewInvoker(deps.NATSClient, cfg.Device.ID, logger, deps.MetricsRegistry.CoreMetrics())

	plant := subsystem.NewPlant(hist, thresholdStore, invoker, cfg.Ingest.PersistThrottle, deps)
	security := subsystem.NewSecurity(hist, thresholdStore, invoker, cfg.Ingest.PersistThrottle, deps)
	geo := subsystem.NewGeoLocation(hist, thresholdStore, invoker, cfg.Ingest.PersistThrottle, deps)
	for _, holder := range []interface {
		LoadThresholds(context.Context) error
	}{plant, security, geo} {
		if err := holder.LoadThresholds(ctx); err != nil {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
	}

	notifier := notify.NewNotifier(logger,
		notify.WithPublisher(deps.NATSClient, "telemetry.changes"))
	notifier.Attach(plant)
	notifier.Attach(security)
	notifier.Attach(geo)
	broadcaster := notify.NewBroadcaster(notifier, cfg.Notify, deps)

	// The staleness watermark freezes the newest persisted timestamp once,
	// before any event is consumed.
	watermark, err := hist.MostRecentTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("establish staleness watermark: %w", err)
	}
	filter := ingest.NewStalenessFilter(watermark)
	logger.Info("Staleness watermark established", "watermark", watermark)

	kafkaStream := stream.NewKafkaStream(stream.KafkaConfig{
		Brokers:    cfg.Kafka.Brokers,
		Topic:      cfg.Kafka.Topic,
		GroupID:    cfg.Kafka.GroupID,
		Partitions: cfg.Kafka.Partitions,
		MinBytes:   cfg.Kafka.MinBytes,
		MaxBytes:   cfg.Kafka.MaxBytes,
		MaxWait:    cfg.Kafka.MaxWait,
	}, deps)
	router := ingest.NewRouter(plant, security, geo, filter, logger, deps.MetricsRegistry.CoreMetrics())
	tracker := ingest.NewCheckpointTracker(kafkaStream, cfg.Ingest.CheckpointBatch, logger, deps.MetricsRegistry.CoreMetrics())
	processor := ingest.NewProcessor(kafkaStream, router, tracker, deps)

	return &pipeline{
		// Start order: history store first, then the feed, then the
		// processor registers its handler, and the stream starts last
		// so no event arrives before the pipeline can take it.
		components: []namedComponent{
			{"historical-store", hist},
			{"broadcaster", broadcaster},
			{"processor", processor},
			{"kafka-stream", kafkaStream},
		},
		reporters: map[string]component.HealthReporter{
			"historical-store": hist,
			"broadcaster":      broadcaster,
			"processor":        processor,
			"kafka-stream":     kafkaStream,
		},
		notifier: notifier,
	}, nil
}

// stopComponents stops components in reverse start order
func stopComponents(components []namedComponent, timeout time.Duration) {
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.component.Stop(timeout); err != nil {
			slog.Error("Failed to stop component", "component", c.name, "error", err)
		}
	}
}
