package abm

import (
	"strings"

	"github.com/tidwall/gjson"
)

const unauthorizedMarker = "Unauthorized"

// IsUnauthorized reports whether a response body signals an expired session.
func IsUnauthorized(body string) bool {
	return strings.Contains(body, unauthorizedMarker)
}

// MdmServer is the server a device is currently assigned to.
type MdmServer struct {
	ID   string
	Name string
}

// CurrentMdmServer extracts data.device.searchInfo.currentMdmServer from a
// GetDeviceDetails response. ok is false when the device or its server is
// absent. Malformed JSON is an error.
func CurrentMdmServer(body string) (server MdmServer, ok bool, err error) {
	if !gjson.Valid(body) {
		return MdmServer{}, false, &MalformedResponseError{Op: OpGetDeviceDetails, Body: body}
	}
	node := gjson.Get(body, "data.device.searchInfo.currentMdmServer")
	id := node.Get("id").String()
	if id == "" {
		return MdmServer{}, false, nil
	}
	return MdmServer{ID: id, Name: node.Get("name").String()}, true, nil
}

// ActivityID extracts data.batchAction.activity.id from an AssignDevices
// response. An empty id with a nil error means the console returned no
// activity.
func ActivityID(body string) (string, error) {
	if !gjson.Valid(body) {
		return "", &MalformedResponseError{Op: OpAssignDevices, Body: body}
	}
	return gjson.Get(body, "data.batchAction.activity.id").String(), nil
}

// ActivityStatus extracts data.activity.status from a CheckActivityProgress
// response.
func ActivityStatus(body string) (string, error) {
	if !gjson.Valid(body) {
		return "", &MalformedResponseError{Op: OpCheckActivityProgress, Body: body}
	}
	status := gjson.Get(body, "data.activity.status")
	if !status.Exists() {
		return "", &MalformedResponseError{Op: OpCheckActivityProgress, Body: body}
	}
	return status.String(), nil
}

// MalformedResponseError reports a body that is not the expected JSON.
type MalformedResponseError struct {
	Op   Operation
	Body string
}

func (e *MalformedResponseError) Error() string {
	return "abm " + string(e.Op) + ": malformed response: " + summarize(e.Body)
}
