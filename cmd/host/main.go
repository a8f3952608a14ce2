package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nemanja-m/wanremote/internal/artifactstore"
	"github.com/nemanja-m/wanremote/internal/collector"
	"github.com/nemanja-m/wanremote/internal/host/api/rest"
	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/internal/host/encoder"
	"github.com/nemanja-m/wanremote/internal/host/nodes"
	"github.com/nemanja-m/wanremote/internal/host/service"
	"github.com/nemanja-m/wanremote/internal/host/storage"
	"github.com/nemanja-m/wanremote/internal/shared/config"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/artifact"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadHost(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *printConfig {
		if err := config.Dump(os.Stdout, cfg); err != nil {
			slog.Error("Failed to print config", "error", err)
			os.Exit(1)
		}
		return
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		slog.Error("Invalid logging config", "error", err)
		os.Exit(1)
	}

	compression, err := artifact.ParseCompression(cfg.Artifact.Compression)
	if err != nil {
		logger.Fatal("Invalid artifact config", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	artifacts, err := artifactstore.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open artifact storage", "type", cfg.Storage.Type, "error", err)
	}

	registry := nodes.NewRegistry()
	col := collector.New(artifacts, logger, collector.WithCompression(compression))
	if err := nodes.RegisterBuiltins(registry, encoder.NewLoader(cfg.Encoder.Models), col); err != nil {
		logger.Fatal("Failed to register node classes", "error", err)
	}

	prompts := service.NewPromptService(storage.NewInMemoryPromptStore(), core.NewPromptQueue(), registry, logger)
	worker := service.NewWorker(prompts, service.NewExecutor(registry, logger), logger)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Run(ctx)
	}()

	server := rest.NewServer(cfg.REST, rest.NewAPI(prompts, artifacts, logger), logger)
	go func() {
		logger.Info("Starting host API server",
			"addr", cfg.REST.Addr,
			"storage", cfg.Storage.Type,
			"compression", compression.String(),
			"node_classes", registry.List(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down host")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	cancel()
	<-workerDone
	logger.Info("Host stopped")
}
