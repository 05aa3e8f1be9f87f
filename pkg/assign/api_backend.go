package assign

import (
	"context"
	"fmt"

	"github.com/entrhq/enroll/pkg/abm"
	"github.com/entrhq/enroll/pkg/logging"
	"github.com/entrhq/enroll/pkg/session"
)

// API is the subset of *abm.Client used by APIBackend.
type API interface {
	ExtendSession(ctx context.Context, mark string) (string, error)
	GetDeviceDetails(ctx context.Context, mark, serial string) (string, error)
	AssignDevices(ctx context.Context, mark, serial, serverID string) (string, error)
	CheckActivityProgress(ctx context.Context, mark, activityID string) (string, error)
	GetLFSUStatus(ctx context.Context, mark string) (string, error)
}

// Sessions is the subset of *session.Manager the backends use.
type Sessions interface {
	Acquire(ctx context.Context) (session.Session, error)
	Renew(ctx context.Context) error
}

// APIBackend assigns devices through the console's GraphQL API.
type APIBackend struct {
	api      API
	sessions Sessions
	target   Target
	logger   *logging.Logger
}

// NewAPIBackend creates a backend assigning to the server with serverID.
func NewAPIBackend(api API, sessions Sessions, serverID string, logger *logging.Logger) *APIBackend {
	if logger == nil {
		logger = logging.Discard()
	}
	return &APIBackend{
		api:      api,
		sessions: sessions,
		target:   Target{ID: serverID},
		logger:   logger,
	}
}

func (b *APIBackend) Target() Target {
	return b.target
}

// Prepare renews the session, which recaptures cookies and logs in again
// only when the portal is gone, then checks that it can be borrowed.
func (b *APIBackend) Prepare(ctx context.Context, req Request) error {
	if err := b.sessions.Renew(ctx); err != nil {
		return err
	}
	_, err := b.sessions.Acquire(ctx)
	return err
}

func (b *APIBackend) KeepAlive(ctx context.Context, req Request) error {
	_, err := call(func() (string, error) { return b.api.ExtendSession(ctx, req.Mark) })
	return err
}

func (b *APIBackend) Lookup(ctx context.Context, req Request) (Device, error) {
	body, err := call(func() (string, error) { return b.api.GetDeviceDetails(ctx, req.Mark, req.Serial) })
	if err != nil {
		return Device{}, err
	}
	server, ok, err := abm.CurrentMdmServer(body)
	if err != nil {
		return Device{}, err
	}
	if ok {
		b.logger.Infof("%s|currentMdmServerId=%s", req.Mark, server.ID)
	}
	return Device{
		Serial: req.Serial,
		Found:  ok,
		Server: Target{ID: server.ID, Name: server.Name},
	}, nil
}

func (b *APIBackend) Submit(ctx context.Context, req Request) (string, error) {
	body, err := call(func() (string, error) { return b.api.AssignDevices(ctx, req.Mark, req.Serial, b.target.ID) })
	if err != nil {
		return "", err
	}
	return abm.ActivityID(body)
}

func (b *APIBackend) ActivityStatus(ctx context.Context, req Request, activityID string) (string, error) {
	body, err := call(func() (string, error) { return b.api.CheckActivityProgress(ctx, req.Mark, activityID) })
	if err != nil {
		return "", err
	}
	return abm.ActivityStatus(body)
}

func (b *APIBackend) TenantStatus(ctx context.Context, req Request) error {
	_, err := call(func() (string, error) { return b.api.GetLFSUStatus(ctx, req.Mark) })
	return err
}

// call runs an API operation and turns a surfaced Unauthorized body into
// abm.ErrUnauthorized.
func call(op func() (string, error)) (string, error) {
	body, err := op()
	if err != nil {
		return "", err
	}
	if abm.IsUnauthorized(body) {
		return "", fmt.Errorf("%w: %s", abm.ErrUnauthorized, body)
	}
	return body, nil
}
