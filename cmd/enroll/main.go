// Package main runs the enroll service: it keeps an authenticated console
// session and exposes device-to-MDM assignment over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/enroll/pkg/abm"
	"github.com/entrhq/enroll/pkg/browser"
	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/dispatch"
	"github.com/entrhq/enroll/pkg/logging"
	"github.com/entrhq/enroll/pkg/server"
	"github.com/entrhq/enroll/pkg/session"
	"github.com/entrhq/enroll/pkg/telemetry"
)

const version = "1.0.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("enroll v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		cancel()
		log.Printf("enroll failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML); defaults to $"+config.EnvConfigPath)
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "enroll - assigns devices to an MDM server in Apple Business Manager\n\n")
		fmt.Fprintf(os.Stderr, "Usage: enroll [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSecrets can be supplied through the environment, e.g. ENROLL_ABM_PASSWORD.\n")
	}

	flag.Parse()
	return cli
}

//nolint:gocyclo
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Setup(cfg.Logging.Dir, cfg.ProjectName, logging.ParseLevel(cfg.Logging.Level)); err != nil {
		log.Printf("Warning: %v, logging to stdout only", err)
	}
	logger, err := logging.NewLogger("enroll")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()
	logger.Infof("enroll v%s starting (run %s, mode %s)", version, logger.RunID(), cfg.ABM.Mode)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ProjectName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warnf("telemetry shutdown: %v", err)
		}
	}()

	driver := browser.NewDriver(cfg, logger.With("browser"))
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warnf("browser close: %v", err)
		}
	}()

	sessions := session.NewManager(driver, cfg.CookieSnapshotPath, logger.With("session"))
	if err := sessions.Start(ctx); err != nil {
		var connectErr *session.ConnectError
		if errors.As(err, &connectErr) {
			return err
		}
		// Requests retry the login, so a failed first login is not fatal
		logger.Errorf("Failed to ensureLogin: %v", err)
	}

	client := abm.NewClient(cfg.ABM, cfg.Policy.MaxUnauthorized, sessions, logger.With("abm"))
	orchestrator := newOrchestrator(cfg, driver, sessions, client, logger.With("assign"))

	dispatcher, err := dispatch.NewDispatcher(cfg.Callback, logger.With("callback"))
	if err != nil {
		return fmt.Errorf("failed to create callback dispatcher: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(cfg, orchestrator, dispatcher, sessions, client, logger.With("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server is running on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("server shutdown: %v", err)
	}
	dispatcher.Wait()
	logger.Infof("enroll stopped")
	return nil
}
