// Package dispatch delivers assignment results to caller supplied callback
// URLs. Delivery is asynchronous and at-most-once: failures are logged and
// never reach the HTTP caller.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/tidwall/sjson"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
)

// paramField is the multipart field carrying the JSON payload.
const paramField = "param"

// Payload is the body reported to the callback.
type Payload struct {
	ID        string
	RPAResult string
	Message   string
}

// JSON encodes the payload as {"id","rpaResult","message"}. Double quotes in
// the message become single quotes.
func (p Payload) JSON() (string, error) {
	body := `{}`
	fields := []struct {
		key   string
		value string
	}{
		{"id", p.ID},
		{"rpaResult", p.RPAResult},
		{"message", strings.ReplaceAll(p.Message, `"`, `'`)},
	}
	for _, f := range fields {
		var err error
		body, err = sjson.Set(body, f.key, f.value)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", f.key, err)
		}
	}
	return body, nil
}

// DisallowedError reports a callback base URL rejected by the allow-list.
type DisallowedError struct {
	BaseURL string
	Reason  string
}

func (e *DisallowedError) Error() string {
	return fmt.Sprintf("callback url %q not allowed: %s", e.BaseURL, e.Reason)
}

// Dispatcher posts results to callbacks in the background.
type Dispatcher struct {
	cfg     config.CallbackConfig
	client  *http.Client
	hosts   []glob.Glob
	pending sync.WaitGroup
	logger  *logging.Logger
}

// NewDispatcher compiles the host allow-list.
func NewDispatcher(cfg config.CallbackConfig, logger *logging.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	hosts := make([]glob.Glob, 0, len(cfg.AllowedHosts))
	for _, pattern := range cfg.AllowedHosts {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed host pattern %q: %w", pattern, err)
		}
		hosts = append(hosts, g)
	}
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		hosts:  hosts,
		logger: logger,
	}, nil
}

// Allowed checks that baseURL is an absolute http(s) URL whose host matches
// the allow-list. An empty allow-list accepts every host.
func (d *Dispatcher) Allowed(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return &DisallowedError{BaseURL: baseURL, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &DisallowedError{BaseURL: baseURL, Reason: "scheme must be http or https"}
	}
	if u.Hostname() == "" {
		return &DisallowedError{BaseURL: baseURL, Reason: "missing host"}
	}
	if len(d.hosts) == 0 {
		return nil
	}
	for _, g := range d.hosts {
		if g.Match(u.Hostname()) {
			return nil
		}
	}
	return &DisallowedError{BaseURL: baseURL, Reason: "host not in allowed list"}
}

// Dispatch posts p to baseURL in the background. It returns immediately.
func (d *Dispatcher) Dispatch(mark, baseURL string, p Payload) {
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		if err := d.Send(context.Background(), mark, baseURL, p); err != nil {
			d.logger.Errorf("%s|callback failed: %v", mark, err)
		}
	}()
}

// Send posts p to baseURL and waits for the answer.
func (d *Dispatcher) Send(ctx context.Context, mark, baseURL string, p Payload) error {
	param, err := p.JSON()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField(paramField, param); err != nil {
		return fmt.Errorf("failed to write form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to write form: %w", err)
	}

	target := strings.TrimRight(baseURL, "/") + d.cfg.Path
	d.logger.Infof("%s|callback url=%s", mark, target)
	d.logger.Infof("%s|callback param=%s", mark, param)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read callback response: %w", err)
	}
	d.logger.Infof("%s|callback status=%d response=%s", mark, resp.StatusCode, string(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback answered HTTP %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until every dispatched callback has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}
