package abm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
	"github.com/entrhq/enroll/pkg/session"
)

// Credentials hands out the current session and renews it on demand.
// *session.Manager satisfies it.
type Credentials interface {
	Acquire(ctx context.Context) (session.Session, error)
	Renew(ctx context.Context) error
	Invalidate()
}

// Client calls the console's private GraphQL endpoint.
type Client struct {
	cfg             config.ABMConfig
	creds           Credentials
	httpClient      *http.Client
	maxUnauthorized int64
	logger          *logging.Logger

	// unauthorized counts Unauthorized answers over the process lifetime
	unauthorized atomic.Int64
}

// NewClient creates a client. maxUnauthorized bounds the renewals triggered
// by Unauthorized answers across the whole process.
func NewClient(cfg config.ABMConfig, maxUnauthorized int, creds Credentials, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		cfg:             cfg,
		creds:           creds,
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		maxUnauthorized: int64(maxUnauthorized),
		logger:          logger,
	}
}

// Invoke sends body as operation op and returns the raw response text.
//
// An Unauthorized answer invalidates the session, renews it and re-issues
// the call, as long as the process-wide count stays within the ceiling.
// Past the ceiling the Unauthorized body itself is returned with a nil
// error; callers inspect it with IsUnauthorized.
func (c *Client) Invoke(ctx context.Context, mark string, op Operation, body string) (string, error) {
	for {
		sess, err := c.creds.Acquire(ctx)
		if err != nil {
			return "", err
		}
		cookie, err := session.CookieHeader(sess.Cookies)
		if err != nil {
			return "", err
		}

		text, err := c.send(ctx, mark, op, sess.ID, cookie, body)
		if err != nil {
			return "", err
		}
		if !IsUnauthorized(text) {
			return text, nil
		}

		c.creds.Invalidate()
		count := c.unauthorized.Add(1)
		if count > c.maxUnauthorized {
			c.logger.Warnf("%s|apiCode=%s|unauthorized %d times, giving up", mark, op, count)
			return text, nil
		}

		c.logger.Warnf("%s|apiCode=%s|unauthorized (%d/%d), renewing session", mark, op, count, c.maxUnauthorized)
		if err := c.creds.Renew(ctx); err != nil {
			return "", fmt.Errorf("renew after unauthorized: %w", err)
		}
	}
}

func (c *Client) endpoint(op Operation, sessionID string) string {
	q := url.Values{}
	q.Set("operation", string(op))
	q.Set("clientName", c.cfg.ClientName)
	q.Set("clientVersion", c.cfg.ClientVersion)
	q.Set("sessionID", sessionID)
	return c.cfg.GraphQLURL + "?" + q.Encode()
}

func (c *Client) send(ctx context.Context, mark string, op Operation, sessionID, cookie, body string) (string, error) {
	c.logger.Infof("%s|apiCode=%s==================================================", mark, op)
	c.logger.Debugf("%s|apiCode=%s|body=%s", mark, op, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(op, sessionID), strings.NewReader(body))
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	c.setHeaders(req, cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Infof("%s|error=%v", mark, err)
		return "", &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	text := string(raw)
	c.logger.Infof("%s|result=%s", mark, text)

	// The console answers an expired session with a non-2xx status too
	if IsUnauthorized(text) {
		return text, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{Op: op, StatusCode: resp.StatusCode, Body: text}
	}
	return text, nil
}

func (c *Client) setHeaders(req *http.Request, cookie string) {
	h := req.Header
	h.Set("accept", "*/*")
	h.Set("accept-language", c.cfg.Language)
	h.Set("origin", c.cfg.Origin)
	h.Set("priority", "u=1, i")
	h.Set("referer", c.cfg.Origin+"/")
	h.Set("sec-ch-ua", `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Windows"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-site")
	h.Set("user-agent", c.cfg.UserAgent)
	h.Set("Cookie", cookie)
	h.Set("content-type", "text/plain")
}
