package main

import (
	"fmt"

	"github.com/beatwave/dashsync/internal/config"
	"github.com/beatwave/dashsync/internal/guard"
	handler "github.com/beatwave/dashsync/internal/handler/http"
	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/queue"
	"github.com/beatwave/dashsync/internal/registry"
	"github.com/beatwave/dashsync/internal/server"
	"github.com/beatwave/dashsync/internal/service"
	"github.com/beatwave/dashsync/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("sync-server")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	dashboard := service.NewDashboardService(log)

	updates := queue.New(queue.Config{
		MessageTTL:      cfg.Queue.MessageTTL,
		CleanupInterval: cfg.Queue.CleanupInterval,
		MaxQueueLength:  cfg.Queue.MaxQueueLength,
	}, log)

	integrity := guard.New(guard.Config{
		MaxTimestampAge:      cfg.Guard.MaxTimestampAge,
		MaxTimestampFuture:   cfg.Guard.MaxTimestampFuture,
		IdempotencyCacheSize: cfg.Guard.IdempotencyCacheSize,
		IdempotencyTTL:       cfg.Guard.IdempotencyTTL,
		FailureWindow:        cfg.Guard.FailureWindow,
		FailureThreshold:     cfg.Guard.FailureThreshold,
	}, log)

	connections := registry.New(registry.Config{
		HeartbeatTimeout: cfg.Registry.HeartbeatTimeout,
		SweepInterval:    cfg.Registry.SweepInterval,
		SnapshotTimeout:  cfg.Registry.SnapshotTimeout,
	}, dashboard, updates, log)

	handlers := handler.NewHandler(handler.Config{
		WebhookSecret:      cfg.Guard.WebhookSecret,
		RateLimitPerSecond: cfg.Guard.RateLimitPerSecond,
		RateLimitBurst:     cfg.Guard.RateLimitBurst,
	}, connections, updates, integrity, dashboard, log)

	background := workers.NewWorkers(
		workers.NewPeriodic("queue-sweep", cfg.Queue.CleanupInterval, updates.RemoveExpired, log),
		workers.NewPeriodic("registry-sweep", cfg.Registry.SweepInterval, connections.SweepStale, log),
	)
	background.Run()

	srv, err := server.NewServer(handlers.Init(), cfg.Server, log,
		connections.Shutdown,
		background.Stop,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
