// Package watchdog supervises the enroll service: it polls the health
// endpoint and runs a restart command when the service stops answering.
package watchdog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
)

// UnhealthyError reports a health answer that is not {"success": true}.
type UnhealthyError struct {
	StatusCode int
	Body       string
}

func (e *UnhealthyError) Error() string {
	return fmt.Sprintf("health check failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Monitor checks the service and restarts it on failure.
type Monitor struct {
	cfg     config.WatchdogConfig
	client  *http.Client
	restart func(ctx context.Context) error
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *logging.Logger
}

// NewMonitor creates a monitor running cfg.RestartCommand on failure.
func NewMonitor(cfg config.WatchdogConfig, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &Monitor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sleep:  sleepContext,
		logger: logger,
	}
	m.restart = m.runRestartCommand
	return m
}

// Check calls the health endpoint once. A nil error means healthy.
func (m *Monitor) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.HealthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}
	body := string(raw)
	if resp.StatusCode != http.StatusOK || !gjson.Get(body, "success").Bool() {
		return &UnhealthyError{StatusCode: resp.StatusCode, Body: body}
	}
	return nil
}

// Tick runs one check, restarting the service if needed, and returns how
// long to wait before the next check.
func (m *Monitor) Tick(ctx context.Context) time.Duration {
	if err := m.Check(ctx); err != nil {
		m.logger.Warnf("%v", err)
		if err := m.restart(ctx); err != nil {
			m.logger.Errorf("restart failed: %v", err)
		}
		m.logger.Infof("Waiting for %s after restart.", m.cfg.WaitAfterRestart)
		return m.cfg.WaitAfterRestart
	}
	m.logger.Infof("Health check successful. Service is running.")
	return m.cfg.Interval
}

// Run checks the service until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		wait := m.Tick(ctx)
		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (m *Monitor) runRestartCommand(ctx context.Context) error {
	cmd := m.cfg.RestartCommand
	if len(cmd) == 0 {
		return fmt.Errorf("no restart command configured")
	}
	m.logger.Infof("Restarting service: %v", cmd)
	out, err := exec.CommandContext(ctx, cmd[0], cmd[1:]...).CombinedOutput() //nolint:gosec
	if len(out) > 0 {
		m.logger.Infof("restart output: %s", out)
	}
	if err != nil {
		return fmt.Errorf("restart command: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
