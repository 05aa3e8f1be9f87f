package assign

import "fmt"

// Outcome is the terminal state of an assignment.
type Outcome string

const (
	Success Outcome = "SUCCESS"
	Failed  Outcome = "FAILED"
)

// Messages reported to callers.
const (
	MsgSessionNotReady = "session is not ready!!!"
	MsgAlreadyAssigned = "current device had assigned to mdm."
	MsgDeviceAdded     = "Device added complete."
)

// Activity statuses reported by the console. Anything but StatusInProgress
// ends polling.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusComplete   = "COMPLETE"
)

// Request is one assignment, immutable once created.
type Request struct {
	Serial string
	// Mark correlates log lines: app-id|serial|record-id
	Mark string
}

// Result is the terminal value of an assignment.
type Result struct {
	Outcome Outcome
	Message string
}

func succeeded(message string) Result {
	return Result{Outcome: Success, Message: message}
}

func failed(message string) Result {
	return Result{Outcome: Failed, Message: message}
}

// Target identifies an MDM server by id (API) or display name (UI).
type Target struct {
	ID   string
	Name string
}

// Matches compares by id when both sides have one, by name otherwise.
func (t Target) Matches(other Target) bool {
	if t.ID != "" && other.ID != "" {
		return t.ID == other.ID
	}
	if t.Name != "" && other.Name != "" {
		return t.Name == other.Name
	}
	return false
}

func (t Target) String() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}

// Device is what a lookup learned about a serial number.
type Device struct {
	Serial string
	// Found is false while the device is not visible in the inventory
	Found  bool
	Server Target
}

// NotFoundError reports a device that never showed up in the inventory.
type NotFoundError struct {
	Serial   string
	Attempts int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("can not find device %s on ABM.", e.Serial)
}
