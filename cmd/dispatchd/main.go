// dispatchd runs the task-dispatch producer as a standalone process: it owns
// a single dispatch service instance, exposes its liveness over HTTP, and
// disconnects cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-task-dispatch/pkg/correlation"
	"github.com/illmade-knight/go-task-dispatch/pkg/dispatch"
	"github.com/illmade-knight/go-task-dispatch/pkg/microservice"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = ":8080"
	}

	cfg := dispatch.LoadProducerConfigWithEnv()
	service, err := dispatch.NewService(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create dispatch service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the broker connection up front so a misconfigured cluster fails
	// at startup; sends would otherwise connect on demand anyway.
	connectCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	if err := service.Connect(connectCtx); err != nil {
		logger.Warn().Err(err).Msg("Broker not reachable at startup; will keep trying on demand")
	}
	cancel()

	// An optional Redis tracker lets separate processes pair results with
	// dispatches; without it, records stay in process memory.
	var tracker correlation.Tracker
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisTracker, err := correlation.NewRedisTracker(ctx, &correlation.RedisConfig{
			Addr:      redisAddr,
			Password:  os.Getenv("REDIS_PASSWORD"),
			RecordTTL: 24 * time.Hour,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect correlation tracker")
		}
		defer func() { _ = redisTracker.Close() }()
		tracker = redisTracker
	} else {
		tracker = correlation.NewInMemoryTracker()
	}
	sender := correlation.NewTrackedSender(service, tracker, logger)

	server := microservice.NewProducerServer(logger, httpPort, service)
	api := microservice.NewDispatchAPI(sender, service, tracker, logger)
	api.RegisterRoutes(server.Mux())
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, disconnecting producer...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	service.Close(shutdownCtx)
	logger.Info().Msg("Producer stopped.")
}
