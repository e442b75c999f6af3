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

	authapp "github.com/callmask/golang_services/internal/auth_service/app"
	authpg "github.com/callmask/golang_services/internal/auth_service/repository/postgres"
	mappingvault "github.com/callmask/golang_services/internal/mapping_vault"
	"github.com/callmask/golang_services/internal/masking_service/adapters/progress"
	maskapp "github.com/callmask/golang_services/internal/masking_service/app"
	"github.com/callmask/golang_services/internal/platform/config"
	"github.com/callmask/golang_services/internal/platform/database"
	"github.com/callmask/golang_services/internal/platform/logger"
	"github.com/callmask/golang_services/internal/platform/messagebroker"
	poolapp "github.com/callmask/golang_services/internal/proxy_pool_service/app"
	poolpg "github.com/callmask/golang_services/internal/proxy_pool_service/repository/postgres"
	httptransport "github.com/callmask/golang_services/internal/public_api_service/transport/http"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "public_api_service"
	shutdownTimeout = 15 * time.Second
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
	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Public API service starting...", "port", cfg.PublicAPIServicePort, "log_level", cfg.LogLevel)

	vault, err := mappingvault.New(cfg.MappingKey)
	if err != nil {
		appLogger.Error("Mapping key rejected", "error", err)
		os.Exit(1)
	}

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, database.PoolOptions{})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	if err := database.EnsureSchema(mainCtx, dbPool); err != nil {
		appLogger.Error("Failed to apply database schema", "error", err)
		os.Exit(1)
	}

	credentialRepo := authpg.NewPgCredentialRepository(dbPool)
	gateway, err := authapp.NewAuthGateway(credentialRepo, authapp.GatewayConfig{
		SigningSecret: cfg.JWTSecret,
		TokenTTL:      cfg.AccessTokenTTL(),
		Issuer:        cfg.JWTIssuer,
	}, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize auth gateway", "error", err)
		os.Exit(1)
	}

	proxyRepo := poolpg.NewPgProxyNumberRepository(dbPool, appLogger)
	poolService := poolapp.NewPoolService(
		proxyRepo,
		vault,
		poolapp.RandomNumberSource{Prefix: cfg.ProxyNumberPrefix, Digits: cfg.ProxyNumberSuffixDigits},
		poolapp.PoolConfig{
			AssignmentTTL:        cfg.AssignmentTTL(),
			MaxAllocateAttempts:  cfg.AllocateMaxAttempts,
			MaxSynthesisAttempts: cfg.SynthesisMaxAttempts,
		},
		appLogger,
	)
	if err := seedEmptyPool(mainCtx, poolService, cfg.PoolSeedSize, appLogger); err != nil {
		appLogger.Error("Failed to seed proxy pool", "error", err)
		os.Exit(1)
	}

	// The progress side channel is optional. Without NATS events are only logged.
	var notifier maskapp.ProgressNotifier
	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Warn("NATS unavailable, call progress events will only be logged", "error", err)
		notifier = progress.NewLogNotifier(appLogger)
	} else {
		defer natsClient.Close()
		appLogger.Info("Successfully connected to NATS")
		notifier = progress.NewNatsNotifier(natsClient, cfg.ProgressAllocatedSubject, appLogger)
	}

	orchestrator := maskapp.NewOrchestrator(gateway, poolService, notifier, maskapp.OrchestratorConfig{
		NotifyTimeout: cfg.ProgressNotifyTimeout,
	}, appLogger)

	validate := httptransport.NewValidator()
	router := httptransport.NewRouter(
		httptransport.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins(),
			RateLimits: httptransport.RateLimits{
				Global:     cfg.RateLimitGlobalPerMinute,
				Login:      cfg.RateLimitLoginPerMinute,
				PoolStatus: cfg.RateLimitPoolStatusPerMinute,
				Mask:       cfg.RateLimitMaskPerMinute,
			},
		},
		httptransport.RouterDeps{
			Auth:   httptransport.NewAuthHandler(gateway, appLogger, validate),
			Pool:   httptransport.NewPoolHandler(poolService, gateway, appLogger),
			Mask:   httptransport.NewMaskHandler(orchestrator, appLogger, validate),
			Health: httptransport.NewHealthHandler(dbPool, appLogger),
		},
		appLogger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.PublicAPIServicePort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			appLogger.Info("HTTPS server starting", "address", httpServer.Addr)
			err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			appLogger.Info("HTTP server starting", "address", httpServer.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
			return err
		}
		return nil
	})

	reaper := poolapp.NewReaper(poolService, cfg.ReaperInterval, appLogger)
	g.Go(func() error {
		return reaper.Run(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			return fmt.Errorf("http shutdown: %w", err)
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	appLogger.Info("Public API service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
	}

	orchestrator.Wait()
	appLogger.Info("Public API service shut down.")
}

// seedEmptyPool fills a brand new pool so the first requests do not all
// synthesize numbers.
func seedEmptyPool(ctx context.Context, pool *poolapp.PoolService, size int, logger *slog.Logger) error {
	if size <= 0 {
		return nil
	}
	stats, err := pool.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.Total > 0 {
		return nil
	}
	inserted, err := pool.Seed(ctx, size)
	if err != nil {
		return err
	}
	logger.Info("Seeded empty proxy pool", "inserted", inserted)
	return nil
}
