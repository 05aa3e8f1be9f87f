package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/enroll/pkg/logging"
)

type fakeDriver struct {
	mu sync.Mutex

	loggedIn   bool
	connectErr error
	loginErr   error
	portalErr  error
	cookies    []Cookie
	cookiesErr error
	sessionID  string

	connects int
	restarts int
	logins   int
}

func (d *fakeDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	return d.connectErr
}

func (d *fakeDriver) Restart(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restarts++
	return nil
}

func (d *fakeDriver) IsLoggedIn(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loggedIn
}

func (d *fakeDriver) Login(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logins++
	if d.loginErr != nil {
		return d.loginErr
	}
	d.loggedIn = true
	return nil
}

func (d *fakeDriver) WaitPortal(ctx context.Context) error {
	return d.portalErr
}

func (d *fakeDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	return d.cookies, d.cookiesErr
}

func (d *fakeDriver) LastSessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

func (d *fakeDriver) setSessionID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = id
}

func newTestManager(d *fakeDriver) *Manager {
	return NewManager(d, "", logging.Discard())
}

func TestManager_AcquireBeforeStart(t *testing.T) {
	m := newTestManager(&fakeDriver{})

	_, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, PlaceholderID, m.Current().ID)
}

func TestManager_Start(t *testing.T) {
	d := &fakeDriver{cookies: jar(), sessionID: "sid-1"}
	m := newTestManager(d)

	require.NoError(t, m.Start(context.Background()))

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sid-1", s.ID)
	assert.True(t, s.Authenticated)
	assert.Equal(t, 1, s.Epoch)
	assert.Len(t, s.Cookies, 4)

	assert.Equal(t, 1, d.connects)
	assert.Equal(t, 1, d.logins)
	assert.Equal(t, 0, d.restarts, "placeholder id never restarts the browser")
}

func TestManager_StartConnectFailure(t *testing.T) {
	d := &fakeDriver{cookies: jar(), connectErr: errors.New("chrome executable not found")}
	m := newTestManager(d)

	err := m.Start(context.Background())
	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Contains(t, err.Error(), "chrome executable not found")
	assert.Equal(t, 0, d.logins, "no login without a browser")

	_, err = m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManager_RenewRetriesConnect(t *testing.T) {
	d := &fakeDriver{cookies: jar(), connectErr: errors.New("chrome executable not found")}
	m := newTestManager(d)
	require.Error(t, m.Start(context.Background()))

	for i := 0; i < 3; i++ {
		var connectErr *ConnectError
		assert.ErrorAs(t, m.Renew(context.Background()), &connectErr)
	}
	assert.Equal(t, 4, d.connects)

	d.mu.Lock()
	d.connectErr = nil
	d.mu.Unlock()

	require.NoError(t, m.Renew(context.Background()))
	require.NoError(t, m.Renew(context.Background()))
	assert.Equal(t, 5, d.connects, "a connected browser is not relaunched")
	_, err := m.Acquire(context.Background())
	assert.NoError(t, err)
}

func TestManager_RenewWhenAlreadyLoggedIn(t *testing.T) {
	d := &fakeDriver{loggedIn: true, cookies: jar()}
	m := newTestManager(d)

	require.NoError(t, m.Renew(context.Background()))
	assert.Equal(t, 0, d.logins)
	assert.True(t, m.Current().Authenticated)
}

func TestManager_RenewRestartsHalfAuthenticatedBrowser(t *testing.T) {
	d := &fakeDriver{cookies: jar(), sessionID: "live-session"}
	m := newTestManager(d)
	require.NoError(t, m.Start(context.Background()))

	// The portal is gone but a real session id has been seen
	d.mu.Lock()
	d.loggedIn = false
	d.mu.Unlock()

	require.NoError(t, m.Renew(context.Background()))
	assert.Equal(t, 1, d.restarts)
	assert.Equal(t, 2, d.logins)
	assert.Equal(t, 2, m.Current().Epoch)
}

func TestManager_RenewLoginFailure(t *testing.T) {
	loginErr := &LoginFailedError{Reason: "auth frame not found"}
	d := &fakeDriver{loginErr: loginErr}
	m := newTestManager(d)

	err := m.Renew(context.Background())
	var lf *LoginFailedError
	require.True(t, errors.As(err, &lf))

	_, err = m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestManager_RenewPortalFailure(t *testing.T) {
	d := &fakeDriver{portalErr: errors.New("frame timeout"), cookies: jar()}
	m := newTestManager(d)

	err := m.Renew(context.Background())
	var lf *LoginFailedError
	require.True(t, errors.As(err, &lf))
	assert.Contains(t, err.Error(), "frame timeout")
}

func TestManager_RenewCookieFailure(t *testing.T) {
	d := &fakeDriver{loggedIn: true, cookiesErr: errors.New("cdp closed")}
	m := newTestManager(d)

	err := m.Renew(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cdp closed")
	assert.False(t, m.Current().Authenticated)
}

func TestManager_Invalidate(t *testing.T) {
	d := &fakeDriver{loggedIn: true, cookies: jar()}
	m := newTestManager(d)
	require.NoError(t, m.Renew(context.Background()))

	m.Invalidate()
	_, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, m.Renew(context.Background()))
	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Epoch)
}

func TestManager_AcquirePullsRotatedSessionID(t *testing.T) {
	d := &fakeDriver{loggedIn: true, cookies: jar(), sessionID: "first"}
	m := newTestManager(d)
	require.NoError(t, m.Renew(context.Background()))

	d.setSessionID("second")
	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", s.ID)

	// An empty observation keeps the last known id
	d.setSessionID("")
	s, err = m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", s.ID)
}

func TestManager_AcquireReturnsCopy(t *testing.T) {
	d := &fakeDriver{loggedIn: true, cookies: jar()}
	m := newTestManager(d)
	require.NoError(t, m.Renew(context.Background()))

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	s.Cookies[0].Value = "tampered"

	again, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", again.Cookies[0].Value)
}

func TestManager_AcquireCancelled(t *testing.T) {
	m := newTestManager(&fakeDriver{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_ConcurrentRenewAndAcquire(t *testing.T) {
	d := &fakeDriver{loggedIn: true, cookies: jar(), sessionID: "sid"}
	m := newTestManager(d)
	require.NoError(t, m.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Renew(context.Background())
		}()
		go func() {
			defer wg.Done()
			m.Invalidate()
			_, _ = m.Acquire(context.Background())
		}()
	}
	wg.Wait()

	require.NoError(t, m.Renew(context.Background()))
	_, err := m.Acquire(context.Background())
	assert.NoError(t, err)
}
