package abm

import "context"

// invokeBuilt builds a body and invokes op with it.
func (c *Client) invokeBuilt(ctx context.Context, mark string, op Operation, build func() (string, error)) (string, error) {
	body, err := build()
	if err != nil {
		return "", err
	}
	return c.Invoke(ctx, mark, op, body)
}

// ExtendSession keeps the console session alive.
func (c *Client) ExtendSession(ctx context.Context, mark string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpExtendSession, ExtendSessionBody)
}

// DevicesForPagination searches the inventory for search. An empty search
// lists the newest devices.
func (c *Client) DevicesForPagination(ctx context.Context, mark, search string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpDevicesForPagination, func() (string, error) {
		return DevicesForPaginationBody(search)
	})
}

// GetDeviceDetails reads one device.
func (c *Client) GetDeviceDetails(ctx context.Context, mark, serial string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpGetDeviceDetails, func() (string, error) {
		return GetDeviceDetailsBody(serial)
	})
}

// ListMdmServers lists the organization's MDM servers.
func (c *Client) ListMdmServers(ctx context.Context, mark string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpListMdmServers, ListMdmServersBody)
}

// MdmServerDeletionActivities lists in-progress server deletions.
func (c *Client) MdmServerDeletionActivities(ctx context.Context, mark string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpMdmServerDeletionActivities, MdmServerDeletionActivitiesBody)
}

// AssignDevices submits the assignment of serial to serverID.
func (c *Client) AssignDevices(ctx context.Context, mark, serial, serverID string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpAssignDevices, func() (string, error) {
		return AssignDevicesBody(serial, serverID)
	})
}

// CheckActivityProgress reads the status of an activity.
func (c *Client) CheckActivityProgress(ctx context.Context, mark, activityID string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpCheckActivityProgress, func() (string, error) {
		return CheckActivityProgressBody(activityID)
	})
}

// GetLFSUStatus reads the tenant enrollment status.
func (c *Client) GetLFSUStatus(ctx context.Context, mark string) (string, error) {
	return c.invokeBuilt(ctx, mark, OpGetLFSUStatus, GetLFSUStatusBody)
}
