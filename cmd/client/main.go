package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beatwave/dashsync/internal/adapter"
	"github.com/beatwave/dashsync/internal/config"
	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/syncmanager"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLoggerTo("sync-client", os.Stderr)
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	poll, err := adapter.NewHTTPPollClient(adapter.HTTPClientConfig{
		BaseURL: cfg.Transport.PollingURL,
		Token:   cfg.Transport.Token,
		Timeout: cfg.Transport.RequestTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("error creating poll client")
	}

	manager := syncmanager.New(syncmanager.Config{
		PushURL:              cfg.Transport.PushURL,
		PollingInterval:      cfg.Transport.PollingInterval,
		MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
		ReconnectBackoffBase: cfg.Transport.ReconnectBackoffBase,
		ReconnectBackoffMax:  cfg.Transport.ReconnectBackoffMax,
		HeartbeatInterval:    cfg.Transport.HeartbeatInterval,
		HeartbeatTimeout:     cfg.Transport.HeartbeatTimeout,
		ConnectionTimeout:    cfg.Transport.ConnectionTimeout,
		ForceSyncTimeout:     cfg.Transport.ForceSyncTimeout,
	}, syncmanager.NewWebsocketDialer(), poll, log)
	defer manager.Destroy()

	manager.Subscribe(syncmanager.EventConnected, func(ev syncmanager.Event) {
		log.Info().Any("payload", ev.Payload).Msg("transport connected")
	})
	manager.Subscribe(syncmanager.EventDisconnected, func(syncmanager.Event) {
		log.Warn().Msg("transport disconnected")
	})
	manager.Subscribe(syncmanager.EventDataUpdated, func(ev syncmanager.Event) {
		log.Info().Any("payload", ev.Payload).Msg("dashboard data updated")
	})
	manager.Subscribe(syncmanager.EventSyncError, func(ev syncmanager.Event) {
		log.Warn().Any("payload", ev.Payload).Msg("sync error")
	})
	manager.Subscribe(syncmanager.EventDataInconsistency, func(ev syncmanager.Event) {
		log.Warn().Any("payload", ev.Payload).Msg("data inconsistency detected")
	})

	if err := manager.StartSync(); err != nil {
		log.Fatal().Err(err).Msg("error starting sync")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	<-ctx.Done()

	manager.StopSync()
	log.Info().Msg("client shut down gracefully")
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
