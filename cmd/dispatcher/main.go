package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nemanja-m/wanremote/internal/dispatcher/client"
	"github.com/nemanja-m/wanremote/internal/dispatcher/core"
	"github.com/nemanja-m/wanremote/internal/dispatcher/service"
	"github.com/nemanja-m/wanremote/internal/shared/config"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	positive := flag.String("positive", "", "positive prompt (overrides config)")
	negative := flag.String("negative", "", "negative prompt (overrides config)")
	output := flag.String("output", "", "write the fetched artifact to this path (overrides config)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadDispatcher(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *positive != "" {
		cfg.Prompt.Positive = *positive
	}
	if *negative != "" {
		cfg.Prompt.Negative = *negative
	}
	if *output != "" {
		cfg.Output.Path = *output
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

	encoderType, err := protocol.ParseEncoderType(cfg.Encoder.Type)
	if err != nil {
		logger.Fatal("Invalid encoder config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.Host.RequestTimeout}
	hostClient := client.NewHostClient(cfg.Host.Addr, httpClient, logger)
	dispatcher := service.NewDispatcher(hostClient, core.PollOptions{
		Interval:               cfg.Poll.Interval,
		Timeout:                cfg.Poll.Timeout,
		MaxConsecutiveFailures: cfg.Poll.MaxConsecutiveFailures,
	}, logger)

	result, err := dispatcher.Dispatch(ctx, core.Request{
		Loader: core.LoaderConfig{
			EncoderName: cfg.Encoder.Name,
			EncoderType: encoderType,
		},
		Positive:       cfg.Prompt.Positive,
		Negative:       cfg.Prompt.Negative,
		FilenamePrefix: cfg.Output.Prefix,
	})
	if err != nil {
		logger.Fatal("Dispatch failed", "host", client.NormalizeBaseURL(cfg.Host.Addr), "error", err)
	}

	if cfg.Output.Path != "" {
		data, err := artifact.Encode(result.Positive, result.Negative)
		if err != nil {
			logger.Fatal("Failed to encode artifact", "error", err)
		}
		if err := os.WriteFile(cfg.Output.Path, data, 0o644); err != nil {
			logger.Fatal("Failed to write artifact", "path", cfg.Output.Path, "error", err)
		}
		logger.Info("Artifact written", "path", cfg.Output.Path, "bytes", len(data))
	}

	fmt.Printf("prompt_id=%s client_id=%s file=%s\n", result.PromptID, result.ClientID, result.Filename)
	fmt.Printf("positive %s\n", result.Positive)
	fmt.Printf("negative %s\n", result.Negative)
}
