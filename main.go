package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"elasticgrid/api"
	"elasticgrid/config"
	"elasticgrid/kernel"
	"elasticgrid/logger"
	"elasticgrid/notify"
	"elasticgrid/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{Level: cfg.Log.Level}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	auditStore, err := store.New(cfg.AuditDBPath)
	if err != nil {
		logger.Fatalf("failed to open audit store: %v", err)
	}
	defer auditStore.Close()

	snapshotStore := store.NewJSONSnapshotStore(cfg.StateFilePath)
	webhook := notify.NewWebhookNotifier(cfg.AlertWebhook)

	engine, err := kernel.NewEngine(snapshotStore, webhook, auditStore.Decision())
	if err != nil {
		logger.Fatalf("failed to initialize engine: %v", err)
	}

	server := api.NewServer(engine, cfg.APIServerPort, cfg.JWTSecret)

	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")
	if err := server.Shutdown(); err != nil {
		logger.Errorf("error during server shutdown: %v", err)
	}
}
