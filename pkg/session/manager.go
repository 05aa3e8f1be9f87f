package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/enroll/pkg/logging"
)

// Driver is the browser capability the Manager needs to log in and read
// credentials.
type Driver interface {
	// Connect launches or attaches to the browser. It is idempotent.
	Connect(ctx context.Context) error
	// Restart tears down the browser and connects again.
	Restart(ctx context.Context) error
	// IsLoggedIn probes for the main portal with a short timeout.
	IsLoggedIn(ctx context.Context) bool
	// Login drives the login surface.
	Login(ctx context.Context) error
	// WaitPortal blocks until the main portal frame is present.
	WaitPortal(ctx context.Context) error
	// Cookies returns the full cookie jar.
	Cookies(ctx context.Context) ([]Cookie, error)
	// LastSessionID returns the last session identifier seen in console
	// traffic, or "" when none has been observed.
	LastSessionID() string
}

// Manager owns the process-wide Session.
type Manager struct {
	driver       Driver
	snapshotPath string
	logger       *logging.Logger

	mu      sync.Mutex
	session Session

	// renewMu serializes logins; mu is never held while the browser works
	renewMu   sync.Mutex
	connected bool // guarded by renewMu
}

// NewManager creates a Manager. The session starts unauthenticated with the
// placeholder identifier.
func NewManager(driver Driver, snapshotPath string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		driver:       driver,
		snapshotPath: snapshotPath,
		logger:       logger,
		session:      Session{ID: PlaceholderID},
	}
}

// Start connects the browser and performs the initial login. A browser that
// cannot be launched is reported as a *ConnectError; a failed login is not,
// since every request retries it.
func (m *Manager) Start(ctx context.Context) error {
	m.renewMu.Lock()
	err := m.connect(ctx)
	m.renewMu.Unlock()
	if err != nil {
		return err
	}
	return m.Renew(ctx)
}

// connect launches the browser unless it is already up. renewMu must be held.
func (m *Manager) connect(ctx context.Context) error {
	if m.connected {
		return nil
	}
	if err := m.driver.Connect(ctx); err != nil {
		return &ConnectError{Err: err}
	}
	m.connected = true
	return nil
}

// Acquire returns a copy of the current session. It fails with ErrNotReady
// until a login has captured cookies, and after Invalidate.
func (m *Manager) Acquire(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.syncID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.Authenticated || len(m.session.Cookies) == 0 {
		return Session{}, ErrNotReady
	}
	return m.session.clone(), nil
}

// Renew makes sure the browser is logged in, then recaptures the cookie jar
// and bumps the epoch. Callers racing on Renew share one login: a caller that
// waited while another renewal succeeded returns immediately.
func (m *Manager) Renew(ctx context.Context) error {
	seen := m.Current().Epoch

	m.renewMu.Lock()
	defer m.renewMu.Unlock()

	if cur := m.Current(); cur.Authenticated && cur.Epoch != seen {
		m.logger.Debugf("session renewed concurrently (epoch %d)", cur.Epoch)
		return nil
	}

	m.logger.Infof("###|ensureLogin start!")
	if err := m.ensureLogin(ctx); err != nil {
		m.Invalidate()
		m.logger.Errorf("Failed to ensureLogin: %v", err)
		return err
	}

	cookies, err := m.driver.Cookies(ctx)
	if err != nil {
		m.Invalidate()
		return fmt.Errorf("failed to capture cookies: %w", err)
	}
	if err := WriteSnapshot(m.snapshotPath, cookies); err != nil {
		m.logger.Warnf("cookie snapshot not written: %v", err)
	}

	m.mu.Lock()
	m.session.Cookies = cookies
	m.session.Authenticated = true
	m.session.Epoch++
	epoch := m.session.Epoch
	m.mu.Unlock()

	m.syncID()
	m.logger.Infof("###|ensureLogin successfully! epoch=%d cookies=%d", epoch, len(cookies))
	return nil
}

func (m *Manager) ensureLogin(ctx context.Context) error {
	if err := m.connect(ctx); err != nil {
		return err
	}
	if m.driver.IsLoggedIn(ctx) {
		return nil
	}

	// A live session id with no portal means a half-authenticated browser
	if id := m.Current().ID; id != PlaceholderID {
		m.logger.Warnf("not logged in with session id %s, restarting browser", id)
		if err := m.driver.Restart(ctx); err != nil {
			m.connected = false
			return fmt.Errorf("failed to restart browser: %w", err)
		}
	}

	m.logger.Infof(">>  Not logged in, performing login...")
	if err := m.driver.Login(ctx); err != nil {
		return err
	}
	if err := m.driver.WaitPortal(ctx); err != nil {
		return &LoginFailedError{Reason: "main portal did not appear", Err: err}
	}
	return nil
}

// Invalidate marks the session as expired. The next Acquire fails until a
// Renew succeeds.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Authenticated = false
}

// Current returns a copy of the session regardless of its state.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// syncID pulls the last observed session identifier from the driver.
func (m *Manager) syncID() {
	id := m.driver.LastSessionID()
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.session.ID {
		m.logger.Infof("login session id changed:from|%s|to|%s|", m.session.ID, id)
		m.session.ID = id
	}
}
