package abm

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Operation is the operation code sent in the URL and as operationName.
type Operation string

const (
	OpExtendSession               Operation = "ExtendSession"
	OpDevicesForPagination        Operation = "DevicesForPagination"
	OpGetDeviceDetails            Operation = "GetDeviceDetails"
	OpListMdmServers              Operation = "ListMdmServers"
	OpMdmServerDeletionActivities Operation = "MdmServerDeletionActivities"
	OpAssignDevices               Operation = "AssignDevices"
	OpCheckActivityProgress       Operation = "CheckActivityProgress"
	OpGetLFSUStatus               Operation = "GetLFSUStatus"
)

// Operations lists every operation the client knows how to build.
var Operations = []Operation{
	OpExtendSession,
	OpDevicesForPagination,
	OpGetDeviceDetails,
	OpListMdmServers,
	OpMdmServerDeletionActivities,
	OpAssignDevices,
	OpCheckActivityProgress,
	OpGetLFSUStatus,
}

const pageLimit = 350

type sortField struct {
	Name  string `json:"name"`
	Order string `json:"order"`
}

// variable is one entry of the variables object, set in order.
type variable struct {
	path  string
	value interface{}
}

// buildBody assembles {"operationName","variables","query"}.
func buildBody(op Operation, document string, vars ...variable) (string, error) {
	body, err := sjson.Set(`{}`, "operationName", string(op))
	if err != nil {
		return "", err
	}
	body, err = sjson.SetRaw(body, "variables", `{}`)
	if err != nil {
		return "", err
	}
	for _, v := range vars {
		body, err = sjson.Set(body, "variables."+v.path, v.value)
		if err != nil {
			return "", fmt.Errorf("set %s: %w", v.path, err)
		}
	}
	return sjson.Set(body, "query", document)
}

// ExtendSessionBody keeps the console session alive.
func ExtendSessionBody() (string, error) {
	return buildBody(OpExtendSession, extendSessionDocument)
}

// DevicesForPaginationBody searches the device inventory, newest first.
// An empty search lists every device.
func DevicesForPaginationBody(search string) (string, error) {
	var vars []variable
	if search != "" {
		vars = append(vars, variable{"search", search})
	}
	vars = append(vars,
		variable{"limit", pageLimit},
		variable{"sortFields", []sortField{{Name: "DATE_CREATED", Order: "DESC"}}},
		variable{"start", 0},
	)
	return buildBody(OpDevicesForPagination, devicesForPaginationDocument, vars...)
}

// GetDeviceDetailsBody reads one device by serial number.
func GetDeviceDetailsBody(serial string) (string, error) {
	return buildBody(OpGetDeviceDetails, getDeviceDetailsDocument, variable{"serial", serial})
}

// ListMdmServersBody lists the organization's MDM servers.
func ListMdmServersBody() (string, error) {
	return buildBody(OpListMdmServers, listMdmServersDocument)
}

// MdmServerDeletionActivitiesBody lists in-progress server deletions.
func MdmServerDeletionActivitiesBody() (string, error) {
	return buildBody(OpMdmServerDeletionActivities, mdmServerDeletionActivitiesDocument,
		variable{"filters.Operation", []string{"REASSIGN_AND_DELETE", "UNASSIGN_AND_DELETE"}},
		variable{"filters.Status", []string{"IN_PROGRESS"}},
		variable{"limit", pageLimit},
		variable{"sortFields", []sortField{{Name: "DATE_COMPLETED", Order: "DESC"}}},
		variable{"start", 0},
	)
}

// AssignDevicesBody assigns serial to the MDM server serverID. The serial is
// both the search filter and the only selected id.
func AssignDevicesBody(serial, serverID string) (string, error) {
	return buildBody(OpAssignDevices, assignDevicesDocument,
		variable{"input.targetServerUid", serverID},
		variable{"input.search", serial},
		variable{"input.selectedIds", []string{serial}},
	)
}

// CheckActivityProgressBody reads the status of an activity.
func CheckActivityProgressBody(activityID string) (string, error) {
	return buildBody(OpCheckActivityProgress, checkActivityProgressDocument, variable{"id", activityID})
}

// GetLFSUStatusBody reads the tenant enrollment status.
func GetLFSUStatusBody() (string, error) {
	return buildBody(OpGetLFSUStatus, getLFSUStatusDocument)
}

// CannedBody builds the body of a known operation for operational debugging.
// arg is the serial number, or the activity id for CheckActivityProgress.
// AssignDevices targets serverID.
func CannedBody(op Operation, arg, serverID string) (string, error) {
	switch op {
	case OpExtendSession:
		return ExtendSessionBody()
	case OpDevicesForPagination:
		return DevicesForPaginationBody(arg)
	case OpGetDeviceDetails:
		return GetDeviceDetailsBody(arg)
	case OpListMdmServers:
		return ListMdmServersBody()
	case OpMdmServerDeletionActivities:
		return MdmServerDeletionActivitiesBody()
	case OpAssignDevices:
		return AssignDevicesBody(arg, serverID)
	case OpCheckActivityProgress:
		return CheckActivityProgressBody(arg)
	case OpGetLFSUStatus:
		return GetLFSUStatusBody()
	default:
		return "", fmt.Errorf("unknown operation: %s", op)
	}
}
