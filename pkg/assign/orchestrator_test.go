package assign

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/entrhq/enroll/pkg/abm"
	"github.com/entrhq/enroll/pkg/logging"
)

// fakeBackend scripts each step. Lookups and statuses are consumed in order
// and the last entry repeats.
type fakeBackend struct {
	target Target

	prepareErr   error
	keepAliveErr error

	lookups   []lookupResult
	lookupIdx int

	activityID string
	submitErr  error

	statuses  []statusResult
	statusIdx int

	tenantErr error

	calls struct {
		prepare, keepAlive, lookup, submit, status, tenant int
	}
}

type lookupResult struct {
	device Device
	err    error
}

type statusResult struct {
	status string
	err    error
}

func (f *fakeBackend) Target() Target { return f.target }

func (f *fakeBackend) Prepare(ctx context.Context, req Request) error {
	f.calls.prepare++
	return f.prepareErr
}

func (f *fakeBackend) KeepAlive(ctx context.Context, req Request) error {
	f.calls.keepAlive++
	return f.keepAliveErr
}

func (f *fakeBackend) Lookup(ctx context.Context, req Request) (Device, error) {
	f.calls.lookup++
	r := f.lookups[min(f.lookupIdx, len(f.lookups)-1)]
	f.lookupIdx++
	return r.device, r.err
}

func (f *fakeBackend) Submit(ctx context.Context, req Request) (string, error) {
	f.calls.submit++
	return f.activityID, f.submitErr
}

func (f *fakeBackend) ActivityStatus(ctx context.Context, req Request, activityID string) (string, error) {
	f.calls.status++
	r := f.statuses[min(f.statusIdx, len(f.statuses)-1)]
	f.statusIdx++
	return r.status, r.err
}

func (f *fakeBackend) TenantStatus(ctx context.Context, req Request) error {
	f.calls.tenant++
	return f.tenantErr
}

func onServer(id string) lookupResult {
	return lookupResult{device: Device{Found: true, Server: Target{ID: id}}}
}

func missing() lookupResult {
	return lookupResult{device: Device{Found: false}}
}

func defaultPolicy() Policy {
	return Policy{RecheckAttempts: 6, RecheckDelay: 8 * time.Second, PollAttempts: 60, PollInterval: time.Second}
}

func newTestOrchestrator(b Backend) (*Orchestrator, *recordingSleeper) {
	sl := &recordingSleeper{}
	return NewOrchestrator(b, defaultPolicy(), logging.Discard(), WithSleeper(sl.Sleep)), sl
}

func request(serial string) Request {
	return Request{Serial: serial, Mark: "app|" + serial + "|rec-1"}
}

func TestAssign_AlreadyOnTarget(t *testing.T) {
	b := &fakeBackend{target: Target{ID: "MDM1"}, lookups: []lookupResult{onServer("MDM1")}}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("C02ABC123"))

	assert.Equal(t, Result{Outcome: Success, Message: "current device had assigned to mdm."}, res)
	assert.Equal(t, 0, b.calls.submit, "an already assigned device is never resubmitted")
	assert.Equal(t, 1, b.calls.keepAlive)
}

func TestAssign_NeverFound(t *testing.T) {
	b := &fakeBackend{target: Target{ID: "MDM1"}, lookups: []lookupResult{missing()}}
	o, sl := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("UNKNOWN999"))

	assert.Equal(t, Failed, res.Outcome)
	assert.Contains(t, res.Message, "can not find device")
	assert.Contains(t, res.Message, "UNKNOWN999")
	assert.Equal(t, 6, b.calls.lookup)
	assert.Equal(t, []time.Duration{8 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second}, sl.sleeps)
	assert.Equal(t, 0, b.calls.submit)
}

func TestAssign_FoundAfterRechecks(t *testing.T) {
	b := &fakeBackend{
		target:     Target{ID: "MDM1"},
		lookups:    []lookupResult{missing(), missing(), onServer("OTHER")},
		activityID: "act-1",
		statuses:   []statusResult{{status: "COMPLETE"}},
	}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))

	assert.Equal(t, Result{Outcome: Success, Message: MsgDeviceAdded}, res)
	assert.Equal(t, 3, b.calls.lookup)
	assert.Equal(t, 1, b.calls.submit)
	assert.Equal(t, 1, b.calls.status)
	assert.Equal(t, 1, b.calls.tenant)
}

func TestAssign_SessionNotReady(t *testing.T) {
	b := &fakeBackend{target: Target{ID: "MDM1"}, prepareErr: errors.New("login failed")}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))

	assert.Equal(t, Result{Outcome: Failed, Message: "session is not ready!!!"}, res)
	assert.Equal(t, 0, b.calls.lookup)
}

func TestAssign_KeepAliveFailureIsNotFatal(t *testing.T) {
	b := &fakeBackend{
		target:       Target{ID: "MDM1"},
		keepAliveErr: errors.New("extend failed"),
		lookups:      []lookupResult{onServer("MDM1")},
	}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))
	assert.Equal(t, Success, res.Outcome)
}

func TestAssign_LookupErrorFailsClosed(t *testing.T) {
	b := &fakeBackend{
		target:  Target{ID: "MDM1"},
		lookups: []lookupResult{missing(), {err: fmt.Errorf("%w: Unauthorized", abm.ErrUnauthorized)}},
	}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))

	assert.Equal(t, Failed, res.Outcome)
	assert.Contains(t, res.Message, "unauthorized")
	assert.Equal(t, 2, b.calls.lookup)
	assert.Equal(t, 0, b.calls.submit)
}

func TestAssign_BackendNotFoundError(t *testing.T) {
	b := &fakeBackend{
		target:  Target{Name: "Acme"},
		lookups: []lookupResult{{err: &NotFoundError{Serial: "SN7", Attempts: 5}}},
	}
	var logs bytes.Buffer
	o := NewOrchestrator(b, defaultPolicy(), logging.NewWriterLogger("assign", &logs), WithSleeper((&recordingSleeper{}).Sleep))

	res := o.Assign(context.Background(), request("SN7"))
	assert.Equal(t, Result{Outcome: Failed, Message: "can not find device SN7 on ABM."}, res)
	assert.Equal(t, 1, b.calls.lookup, "a backend not-found is terminal")
	assert.Contains(t, logs.String(), "gave up after 5 attempts")
}

func TestAssign_SubmitError(t *testing.T) {
	b := &fakeBackend{
		target:    Target{ID: "MDM1"},
		lookups:   []lookupResult{onServer("OTHER")},
		submitErr: errors.New("abm AssignDevices: HTTP 502: Bad Gateway"),
	}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))
	assert.Equal(t, Result{Outcome: Failed, Message: "abm AssignDevices: HTTP 502: Bad Gateway"}, res)
}

func TestAssign_NoActivityIDIsSuccess(t *testing.T) {
	b := &fakeBackend{target: Target{ID: "MDM1"}, lookups: []lookupResult{onServer("OTHER")}}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))

	assert.Equal(t, Result{Outcome: Success, Message: MsgDeviceAdded}, res)
	assert.Equal(t, 0, b.calls.status)
	assert.Equal(t, 0, b.calls.tenant)
}

func TestAssign_PollingIsBounded(t *testing.T) {
	b := &fakeBackend{
		target:     Target{ID: "MDM1"},
		lookups:    []lookupResult{onServer("OTHER")},
		activityID: "act-1",
		statuses:   []statusResult{{status: StatusInProgress}},
	}
	o, sl := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, 60, b.calls.status)
	assert.Len(t, sl.sleeps, 59)
	assert.Equal(t, 1, b.calls.tenant, "tenant status is read when the cap is hit")
}

func TestAssign_PollingStopsOnAnyOtherStatus(t *testing.T) {
	b := &fakeBackend{
		target:     Target{ID: "MDM1"},
		lookups:    []lookupResult{onServer("OTHER")},
		activityID: "act-1",
		statuses: []statusResult{
			{status: StatusInProgress},
			{status: StatusInProgress},
			{status: "FAILED_PARTIALLY"},
		},
	}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))
	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, 3, b.calls.status)
}

func TestAssign_PollingErrorIsLikelyComplete(t *testing.T) {
	b := &fakeBackend{
		target:     Target{ID: "MDM1"},
		lookups:    []lookupResult{onServer("OTHER")},
		activityID: "act-1",
		statuses:   []statusResult{{status: StatusInProgress}, {err: errors.New("connection reset")}},
	}
	o, _ := newTestOrchestrator(b)

	res := o.Assign(context.Background(), request("SN1"))

	assert.Equal(t, Result{Outcome: Success, Message: MsgDeviceAdded}, res)
	assert.Equal(t, 2, b.calls.status)
	assert.Equal(t, 0, b.calls.tenant)
}

func TestAssign_TenantStatusFailureIgnored(t *testing.T) {
	b := &fakeBackend{
		target:     Target{ID: "MDM1"},
		lookups:    []lookupResult{onServer("OTHER")},
		activityID: "act-1",
		statuses:   []statusResult{{status: StatusComplete}},
		tenantErr:  errors.New("boom"),
	}
	o, _ := newTestOrchestrator(b)

	assert.Equal(t, Success, o.Assign(context.Background(), request("SN1")).Outcome)
}

func TestAssign_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	b := &fakeBackend{target: Target{ID: "MDM1"}, lookups: []lookupResult{missing()}}
	o := NewOrchestrator(b, Policy{RecheckAttempts: 2, PollAttempts: 1}, nil,
		WithSleeper((&recordingSleeper{}).Sleep),
		WithTracer(tp.Tracer("test")),
	)

	res := o.Assign(context.Background(), request("SN1"))
	require.Equal(t, Failed, res.Outcome)

	names := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = s
	}
	require.Contains(t, names, "assign")
	require.Contains(t, names, "assign.prepare")
	require.Contains(t, names, "assign.check")
	assert.NotContains(t, names, "assign.submit")

	root := names["assign"]
	assert.Equal(t, otelcodes.Error, root.Status().Code)
	assert.Equal(t, names["assign"].SpanContext().TraceID(), names["assign.check"].SpanContext().TraceID())
}

func TestTargetMatches(t *testing.T) {
	assert.True(t, Target{ID: "A"}.Matches(Target{ID: "A", Name: "x"}))
	assert.False(t, Target{ID: "A"}.Matches(Target{ID: "B"}))
	assert.True(t, Target{Name: "Acme"}.Matches(Target{Name: "Acme"}))
	assert.False(t, Target{Name: "Acme"}.Matches(Target{Name: ""}))
	assert.False(t, Target{ID: "A"}.Matches(Target{}))
}
