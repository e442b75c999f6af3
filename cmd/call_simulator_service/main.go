package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callmask/golang_services/internal/call_simulator_service/app"
	"github.com/callmask/golang_services/internal/platform/config"
	"github.com/callmask/golang_services/internal/platform/logger"
	"github.com/callmask/golang_services/internal/platform/messagebroker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "call_simulator_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(serviceName, cfg.LogLevel)
	appLogger.Info("Call simulator service starting...",
		"subject", cfg.ProgressAllocatedSubject,
		"queue_group", cfg.SimulatorQueueGroup,
		"metrics_port", cfg.SimulatorMetricsPort,
	)

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	simulator := app.NewCallSimulator(natsClient, app.SimulatorConfig{
		StateSubject: cfg.ProgressStateSubject,
		MinDelay:     cfg.SimulatorMinDelay,
		MaxDelay:     cfg.SimulatorMaxDelay,
		FailureRate:  cfg.SimulatorFailureRate,
	}, appLogger)
	consumer := app.NewProgressConsumer(natsClient, simulator, cfg.SimulatorMaxConcurrent, appLogger)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return consumer.StartConsuming(groupCtx, cfg.ProgressAllocatedSubject, cfg.SimulatorQueueGroup)
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.SimulatorMetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics http shutdown: %w", err)
		}
		appLogger.Info("Metrics HTTP server shut down gracefully.")
		return nil
	})

	appLogger.Info("Call simulator service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
	}
	appLogger.Info("Call simulator service shut down.")
}
