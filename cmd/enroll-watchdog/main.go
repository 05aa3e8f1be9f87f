// Package main runs the enroll watchdog. It polls the service's health
// endpoint and runs the configured restart command when the check fails.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
	"github.com/entrhq/enroll/pkg/watchdog"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file (YAML); defaults to $"+config.EnvConfigPath)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		log.Printf("watchdog failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, err := config.Read(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Watchdog.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Setup(cfg.Logging.Dir, cfg.ProjectName+"-watchdog", logging.ParseLevel(cfg.Logging.Level)); err != nil {
		log.Printf("Warning: %v, logging to stdout only", err)
	}
	logger, err := logging.NewLogger("watchdog")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()

	logger.Infof("watching %s every %s", cfg.Watchdog.HealthURL, cfg.Watchdog.Interval)
	err = watchdog.NewMonitor(cfg.Watchdog, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Infof("watchdog stopped")
		return nil
	}
	return err
}
