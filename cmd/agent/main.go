package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toursync/internal/api"
	"toursync/internal/config"
	"toursync/internal/connectivity"
	"toursync/internal/database"
	"toursync/internal/events"
	"toursync/internal/export"
	"toursync/internal/logging"
	"toursync/internal/metrics"
	"toursync/internal/models"
	"toursync/internal/remote"
	"toursync/internal/service"
	"toursync/internal/syncer"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := remote.NewRedisClient(cfg.Remote)
	defer redisClient.Close()

	store := remote.NewRedisStore(redisClient, cfg.Remote.DeviceID, &logger)
	// Being offline at startup is normal; the queue keeps accepting.
	if err := store.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("Remote store unreachable at startup")
	}

	monitor := connectivity.NewHTTPMonitor(cfg.Connectivity, &logger)
	bus := events.NewEventBus()

	orchestrator := syncer.NewOrchestrator(db, store, monitor, bus, cfg.Sync, &logger)
	bookingService := service.NewBookingService(db, bus, &logger)
	reporter := export.NewReporter(db, cfg.Sync.MaxRetries)

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, &logger)
	}

	subscribeSyncEvents(bus, &logger)

	cancelSync := orchestrator.StartPeriodic(ctx, cfg.Sync.Interval(), func(result models.BatchResult) {
		logger.Info().
			Int("succeeded", len(result.Succeeded)).
			Int("failed", len(result.Failed)).
			Msg("Sync batch completed")
	})
	defer cancelSync()

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, bookingService, orchestrator, reporter, cfg.Sync.MaxRetries, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Msg("Sync agent started")
	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "agent-main").Logger()

	return cfg, logger, closer, nil
}

func subscribeSyncEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventBookingFailed, func(event *events.Event) error {
		logger.Warn().RawJSON("payload", event.Payload).Msg("Booking sync failed")
		return nil
	})
	bus.Subscribe(events.EventBookingCommitted, func(event *events.Event) error {
		logger.Info().RawJSON("payload", event.Payload).Msg("Booking synced")
		return nil
	})
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("Metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server error")
	}
}
