package assign

import "context"

// Backend performs the individual steps of an assignment against the
// console.
type Backend interface {
	// Target is the MDM server devices are assigned to.
	Target() Target

	// Prepare makes sure an authenticated session is available.
	Prepare(ctx context.Context, req Request) error

	// KeepAlive extends the console session. Failures are not fatal.
	KeepAlive(ctx context.Context, req Request) error

	// Lookup reads the device's current MDM server. Found is false while the
	// device is not visible yet.
	Lookup(ctx context.Context, req Request) (Device, error)

	// Submit assigns the device to Target and returns the activity id, or ""
	// when the console returned none.
	Submit(ctx context.Context, req Request) (string, error)

	// ActivityStatus reads the status of a submitted activity.
	ActivityStatus(ctx context.Context, req Request, activityID string) (string, error)

	// TenantStatus is a closing read for operational visibility.
	TenantStatus(ctx context.Context, req Request) error
}
