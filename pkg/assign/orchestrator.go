package assign

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
)

const tracerName = "github.com/entrhq/enroll/pkg/assign"

// Policy bounds the retry loops of an assignment.
type Policy struct {
	RecheckAttempts int
	RecheckDelay    time.Duration
	PollAttempts    int
	PollInterval    time.Duration
}

// PolicyFromConfig extracts the orchestrator budgets from the settings.
func PolicyFromConfig(cfg config.PolicyConfig) Policy {
	return Policy{
		RecheckAttempts: cfg.RecheckAttempts,
		RecheckDelay:    cfg.RecheckDelay,
		PollAttempts:    cfg.PollAttempts,
		PollInterval:    cfg.PollInterval,
	}
}

// Orchestrator runs assignments against a Backend. It holds no per-request
// state and may be shared by concurrent requests.
type Orchestrator struct {
	backend Backend
	policy  Policy
	sleep   Sleeper
	tracer  trace.Tracer
	logger  *logging.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the real sleep between attempts.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(backend Backend, policy Policy, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	o := &Orchestrator{
		backend: backend,
		policy:  policy,
		sleep:   SleepContext,
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Assign runs one assignment to completion. Every failure is reported in
// the Result.
func (o *Orchestrator) Assign(ctx context.Context, req Request) Result {
	ctx, span := o.tracer.Start(ctx, "assign",
		trace.WithAttributes(
			attribute.String("enroll.serial", req.Serial),
			attribute.String("enroll.target", o.backend.Target().String()),
		),
	)
	defer span.End()

	result := o.run(ctx, req)

	span.SetAttributes(attribute.String("enroll.outcome", string(result.Outcome)))
	if result.Outcome == Failed {
		span.SetStatus(codes.Error, result.Message)
	}
	o.logger.Infof("%s|%s|%s", req.Mark, result.Outcome, result.Message)
	return result
}

func (o *Orchestrator) run(ctx context.Context, req Request) Result {
	o.logger.Infof("%s|Processing serial %s", req.Mark, req.Serial)

	if err := o.phase(ctx, "prepare", func(ctx context.Context) error {
		return o.backend.Prepare(ctx, req)
	}); err != nil {
		o.logger.Errorf("%s|session prepare failed: %v", req.Mark, err)
		return failed(MsgSessionNotReady)
	}

	if err := o.phase(ctx, "keep_alive", func(ctx context.Context) error {
		return o.backend.KeepAlive(ctx, req)
	}); err != nil {
		o.logger.Warnf("%s|extend session failed: %v", req.Mark, err)
	}

	var device Device
	if err := o.phase(ctx, "check", func(ctx context.Context) error {
		var err error
		device, err = o.check(ctx, req)
		return err
	}); err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			o.logger.Warnf("%s|%v (gave up after %d attempts)", req.Mark, err, notFound.Attempts)
			return failed(notFound.Error())
		}
		o.logger.Errorf("%s|checking current server: %v", req.Mark, err)
		return failed(err.Error())
	}

	if o.backend.Target().Matches(device.Server) {
		o.logger.Infof("%s|%s", req.Mark, MsgAlreadyAssigned)
		return succeeded(MsgAlreadyAssigned)
	}

	var activityID string
	if err := o.phase(ctx, "submit", func(ctx context.Context) error {
		var err error
		activityID, err = o.backend.Submit(ctx, req)
		return err
	}); err != nil {
		o.logger.Errorf("%s|submitting assignment: %v", req.Mark, err)
		return failed(err.Error())
	}

	if activityID == "" {
		o.logger.Warnf("%s|no activity id returned, treating the submission as complete", req.Mark)
		return succeeded(MsgDeviceAdded)
	}

	if o.pollActivity(ctx, req, activityID) {
		if err := o.phase(ctx, "tenant_status", func(ctx context.Context) error {
			return o.backend.TenantStatus(ctx, req)
		}); err != nil {
			o.logger.Warnf("%s|tenant status read failed: %v", req.Mark, err)
		}
	}
	return succeeded(MsgDeviceAdded)
}

// check rechecks the device until it is visible, within the recheck budget.
func (o *Orchestrator) check(ctx context.Context, req Request) (Device, error) {
	device, found, err := Poll(ctx, o.policy.RecheckAttempts, o.policy.RecheckDelay, o.sleep,
		func(ctx context.Context, attempt int) (Step[Device], error) {
			device, err := o.backend.Lookup(ctx, req)
			if err != nil {
				return Step[Device]{}, err
			}
			if device.Found {
				return Terminal(device), nil
			}
			o.logger.Infof("%s|device not visible yet (%d/%d)", req.Mark, attempt, o.policy.RecheckAttempts)
			return Continue[Device](), nil
		})
	if err != nil {
		return Device{}, err
	}
	if !found {
		return Device{}, &NotFoundError{Serial: req.Serial, Attempts: o.policy.RecheckAttempts}
	}
	return device, nil
}

// pollActivity waits for the activity to leave IN_PROGRESS. It reports
// whether polling ended normally (status change or budget spent). A polling
// error is logged and treated as a likely completed activity.
func (o *Orchestrator) pollActivity(ctx context.Context, req Request, activityID string) bool {
	var (
		status string
		done   bool
	)
	err := o.phase(ctx, "poll_activity", func(ctx context.Context) error {
		var err error
		status, done, err = Poll(ctx, o.policy.PollAttempts, o.policy.PollInterval, o.sleep,
			func(ctx context.Context, attempt int) (Step[string], error) {
				status, err := o.backend.ActivityStatus(ctx, req, activityID)
				if err != nil {
					return Step[string]{}, err
				}
				if status == StatusInProgress {
					return Continue[string](), nil
				}
				return Terminal(status), nil
			})
		return err
	})
	if err != nil {
		o.logger.Warnf("%s|checkActivityProcess error, apple assign server may done!!! (%v)", req.Mark, err)
		return false
	}
	if !done {
		o.logger.Warnf("%s|activity %s still %s after %d polls", req.Mark, activityID, StatusInProgress, o.policy.PollAttempts)
		return true
	}
	o.logger.Infof("%s|activity %s finished with status %s", req.Mark, activityID, status)
	return true
}

// phase runs fn inside a child span.
func (o *Orchestrator) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "assign."+name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
