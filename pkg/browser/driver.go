package browser

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
	"github.com/entrhq/enroll/pkg/session"
)

var launchArgs = []string{
	"--disable-gpu",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--no-zygote",
}

// Driver owns the single browser context of the process.
type Driver struct {
	browser   config.BrowserConfig
	abm       config.ABMConfig
	selectors config.SelectorConfig
	policy    config.PolicyConfig
	logger    *logging.Logger
	tracker   *Tracker

	mu      sync.Mutex
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    playwright.Page
}

// NewDriver creates a driver. Nothing is launched until Connect.
func NewDriver(cfg *config.Config, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{
		browser:   cfg.Browser,
		abm:       cfg.ABM,
		selectors: cfg.Selectors,
		policy:    cfg.Policy,
		logger:    logger,
		tracker:   &Tracker{},
	}
}

// Connect starts playwright and launches the persistent context. It reuses
// an existing context.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.context != nil {
		return nil
	}

	if d.pw == nil {
		// Keep playwright's own output out of the service log
		opts := &playwright.RunOptions{
			Verbose: false,
			Stdout:  io.Discard,
			Stderr:  io.Discard,
		}
		if d.browser.ExecutablePath != "" {
			opts.SkipInstallBrowsers = true
		}
		if d.browser.Install {
			if err := playwright.Install(opts); err != nil {
				return fmt.Errorf("failed to install playwright: %w", err)
			}
		}
		pw, err := playwright.Run(opts)
		if err != nil {
			return fmt.Errorf("failed to start playwright: %w", err)
		}
		d.pw = pw
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(d.browser.Headless),
		Args:     launchArgs,
	}
	if d.browser.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(d.browser.ExecutablePath)
	}

	bctx, err := d.pw.Chromium.LaunchPersistentContext(d.browser.UserDataDir, launchOpts)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = bctx.NewPage()
		if err != nil {
			bctx.Close()
			return fmt.Errorf("failed to create page: %w", err)
		}
		if _, err := page.Goto(d.abm.LoginURL); err != nil {
			d.logger.Warnf("initial navigation failed: %v", err)
		}
	}

	d.observe(page)
	d.context = bctx
	d.page = page
	d.logger.Infof("browser connected (headless=%t)", d.browser.Headless)
	return nil
}

// observe installs passive observers that feed the session id tracker.
func (d *Driver) observe(page playwright.Page) {
	page.OnRequest(func(req playwright.Request) {
		if strings.Contains(req.URL(), sessionIDParam) {
			d.logger.Debugf("listen|Request URL: %s", req.URL())
		}
		d.tracker.ObserveRequest(req.Method(), req.URL())
	})
	page.OnResponse(func(resp playwright.Response) {
		d.tracker.ObserveResponse(resp.URL())
	})
}

// Restart closes the context, runs the configured kill command and connects
// again.
func (d *Driver) Restart(ctx context.Context) error {
	d.mu.Lock()
	if d.context != nil {
		if err := d.context.Close(); err != nil {
			d.logger.Warnf("closing browser context: %v", err)
		}
		d.context = nil
		d.page = nil
	}
	d.mu.Unlock()

	d.kill(ctx)
	return d.Connect(ctx)
}

func (d *Driver) kill(ctx context.Context) {
	if len(d.browser.KillCommand) == 0 {
		return
	}
	cmd := exec.CommandContext(ctx, d.browser.KillCommand[0], d.browser.KillCommand[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		d.logger.Errorf("kill all chrome error: %v: %s", err, strings.TrimSpace(string(out)))
		return
	}
	d.logger.Infof("kill all chrome: %s", strings.TrimSpace(string(out)))
}

func (d *Driver) currentPage() (playwright.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil, fmt.Errorf("browser not connected")
	}
	return d.page, nil
}

// frame waits for the named frame of the page.
func (d *Driver) frame(ctx context.Context, page playwright.Page, name string, timeout time.Duration) (playwright.Frame, error) {
	var found playwright.Frame
	err := waitFor(ctx, timeout, framePollInterval, func() bool {
		found = page.Frame(playwright.PageFrameOptions{Name: playwright.String(name)})
		return found != nil
	})
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", name, err)
	}
	return found, nil
}

// Login navigates to the login surface and submits the password inside the
// authentication iframe. The account name is expected to be remembered by the
// browser profile.
func (d *Driver) Login(ctx context.Context) error {
	page, err := d.currentPage()
	if err != nil {
		return &session.LoginFailedError{Reason: "no page", Err: err}
	}

	d.logger.Infof(">>  Navigating to login page...")
	if _, err := page.Goto(d.abm.LoginURL); err != nil {
		return &session.LoginFailedError{Reason: "navigation failed", Err: err}
	}

	auth, err := d.frame(ctx, page, d.browser.LoginFrame, d.browser.LoginFrameTimeout)
	if err != nil {
		d.logger.Errorf(">> Login iframe not found!")
		return &session.LoginFailedError{Reason: "Login iframe not found", Err: err}
	}
	d.logger.Infof(">>  Login iframe found, navigating inside the iframe...")

	p := &Portal{frame: auth}
	sel := d.selectors.PasswordInput
	if err := p.WaitVisible(ctx, sel, d.browser.LoginFrameTimeout); err != nil {
		return &session.LoginFailedError{Reason: "password field not found", Err: err}
	}
	if err := p.Clear(ctx, sel); err != nil {
		return &session.LoginFailedError{Reason: "clear password field", Err: err}
	}
	if err := p.Type(ctx, sel, d.abm.AccountPassword, d.policy.PasswordTypeDelay); err != nil {
		return &session.LoginFailedError{Reason: "type password", Err: err}
	}

	typed, err := auth.InputValue(sel)
	if err != nil || typed != d.abm.AccountPassword {
		return &session.LoginFailedError{Reason: "password field did not take the input", Err: err}
	}

	if err := p.WaitVisible(ctx, d.selectors.SignInButton, d.browser.LoginFrameTimeout); err != nil {
		return &session.LoginFailedError{Reason: "sign in button not found", Err: err}
	}
	if err := p.Click(ctx, d.selectors.SignInButton); err != nil {
		return &session.LoginFailedError{Reason: "sign in click", Err: err}
	}

	d.logger.Infof(">>  Login successful!")
	return nil
}

// IsLoggedIn reports whether the main portal frame shows up within the probe
// timeout.
func (d *Driver) IsLoggedIn(ctx context.Context) bool {
	page, err := d.currentPage()
	if err != nil {
		return false
	}
	_, err = d.frame(ctx, page, d.browser.PortalFrame, d.browser.PortalProbeTimeout)
	return err == nil
}

// WaitPortal blocks until the main portal frame is present.
func (d *Driver) WaitPortal(ctx context.Context) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	_, err = d.frame(ctx, page, d.browser.PortalFrame, d.browser.PortalWaitTimeout)
	return err
}

// OpenPortal navigates to rawURL unless the page is already there and returns
// the main portal frame.
func (d *Driver) OpenPortal(ctx context.Context, rawURL string) (*Portal, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	if page.URL() != rawURL {
		if _, err := page.Goto(rawURL); err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", rawURL, err)
		}
	}
	frame, err := d.frame(ctx, page, d.browser.PortalFrame, d.browser.PortalWaitTimeout)
	if err != nil {
		return nil, err
	}
	d.logger.Debugf("Main iframe found, navigating inside the iframe...")
	return &Portal{frame: frame}, nil
}

// Cookies returns the full cookie jar. The DevTools protocol sees every
// domain; the context API is the fallback.
func (d *Driver) Cookies(ctx context.Context) ([]session.Cookie, error) {
	d.mu.Lock()
	bctx, page := d.context, d.page
	d.mu.Unlock()
	if bctx == nil || page == nil {
		return nil, fmt.Errorf("browser not connected")
	}

	cookies, err := d.cdpCookies(bctx, page)
	if err == nil {
		return cookies, nil
	}
	d.logger.Warnf("cdp cookie capture failed, using context cookies: %v", err)

	fallback, ferr := bctx.Cookies()
	if ferr != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", ferr)
	}
	return cookiesFromContext(fallback), nil
}

func (d *Driver) cdpCookies(bctx playwright.BrowserContext, page playwright.Page) ([]session.Cookie, error) {
	cdp, err := bctx.NewCDPSession(page)
	if err != nil {
		return nil, fmt.Errorf("failed to open cdp session: %w", err)
	}
	defer cdp.Detach()

	result, err := cdp.Send("Network.getAllCookies", nil)
	if err != nil {
		return nil, fmt.Errorf("Network.getAllCookies: %w", err)
	}
	return cookiesFromCDP(result)
}

// LastSessionID returns the last session id seen in console traffic.
func (d *Driver) LastSessionID() string {
	return d.tracker.Last()
}

// Close closes the context and stops playwright.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.context != nil {
		_ = d.context.Close()
		d.context = nil
		d.page = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		d.pw = nil
	}
	return nil
}
