package adminapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jeffmoIA/netdesk/internal/bridge"
	"github.com/jeffmoIA/netdesk/internal/webserver"
)

// queueRatePayload represents a queue rate change request
type queueRatePayload struct {
	QueueName    string  `json:"queue_name" validate:"required,min=1,max=100"`
	DownloadMbps float64 `json:"download_mbps" validate:"required,gt=0"`
	UploadMbps   float64 `json:"upload_mbps" validate:"omitempty,gt=0"`
}

// registerMikrotikRoutes registers RouterOS operation routes. Network
// operations dispatch through the bridge and return a correlation id;
// outcomes are collected from /network/events.
func registerMikrotikRoutes() {
	webserver.ApiGET("/network/events", DrainEvents)
	webserver.ApiPOST("/network/devices/probe", BulkProbeDevices)
	webserver.ApiPOST("/network/devices/:id/probe", ProbeDevice)
	webserver.ApiPOST("/network/devices/:id/identity", ProbeIdentity)
	webserver.ApiGET("/network/devices/:id/queues", ListDeviceQueues)
	webserver.ApiPUT("/network/devices/:id/queues/rate", SetDeviceQueueRate)
	webserver.ApiPOST("/network/devices/:id/export", FetchDeviceExport)
	webserver.ApiGET("/network/devices/:id/export", GetStoredExport)
}

func submit(c echo.Context, topic bridge.Label, task bridge.Task) error {
	id, err := GetAppContext(c).Bridge().Submit(topic, task)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "BRIDGE_CLOSED", "Background worker unavailable", err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"correlation_id": strconv.FormatInt(id, 10),
		"topic":          topic,
	})
}

// DrainEvents returns completed background operation results
func DrainEvents(c echo.Context) error {
	max, _ := strconv.Atoi(c.QueryParam("max"))
	msgs := GetAppContext(c).Bridge().Drain(max)
	if msgs == nil {
		msgs = []bridge.Message{}
	}
	return ok(c, map[string]interface{}{"events": msgs})
}

// ProbeDevice checks one device's reachability in the background
func ProbeDevice(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	appCtx := GetAppContext(c)
	return submit(c, bridge.LabelProbe, func(ctx context.Context) (bool, string, interface{}) {
		reachable, err := appCtx.MikrotikService().VerifyConnectivity(ctx, id)
		if err != nil {
			return false, err.Error(), nil
		}
		return true, "probe finished", map[string]interface{}{"device_id": id, "reachable": reachable}
	})
}

// BulkProbeDevices sweeps all active devices in the background
func BulkProbeDevices(c echo.Context) error {
	appCtx := GetAppContext(c)
	return submit(c, bridge.LabelBulkProbe, func(ctx context.Context) (bool, string, interface{}) {
		report, err := appCtx.MikrotikService().BulkProbe(ctx)
		if err != nil {
			return false, err.Error(), nil
		}
		return true, "bulk probe finished", report
	})
}

// ProbeIdentity reads the device's system resource over the API
func ProbeIdentity(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	appCtx := GetAppContext(c)
	return submit(c, bridge.LabelIdentity, func(ctx context.Context) (bool, string, interface{}) {
		res := appCtx.MikrotikService().ProbeAPI(ctx, id)
		return res.OK, res.Message, map[string]interface{}{"device_id": id}
	})
}

// ListDeviceQueues reads the simple queues from a live device
func ListDeviceQueues(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	appCtx := GetAppContext(c)
	return submit(c, bridge.LabelQueueList, func(ctx context.Context) (bool, string, interface{}) {
		res, rules := appCtx.MikrotikService().ListQueues(ctx, id)
		return res.OK, res.Message, map[string]interface{}{"device_id": id, "queues": rules}
	})
}

// SetDeviceQueueRate changes a queue's bandwidth limit
func SetDeviceQueueRate(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	var payload queueRatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	appCtx := GetAppContext(c)
	return submit(c, bridge.LabelQueueUpdate, func(ctx context.Context) (bool, string, interface{}) {
		res := appCtx.MikrotikService().SetQueueRate(ctx, id, payload.QueueName, payload.DownloadMbps, payload.UploadMbps)
		return res.OK, res.Message, map[string]interface{}{"device_id": id, "queue": payload.QueueName}
	})
}

// FetchDeviceExport pulls a full configuration export in the background
func FetchDeviceExport(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	appCtx := GetAppContext(c)
	return submit(c, bridge.LabelExport, func(ctx context.Context) (bool, string, interface{}) {
		res, export := appCtx.MikrotikService().FetchFullExport(ctx, id)
		return res.OK, res.Message, map[string]interface{}{"device_id": id, "size": len(export)}
	})
}

// GetStoredExport returns the last persisted configuration export
func GetStoredExport(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	dev, err := GetAppContext(c).DeviceService().GetByID(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	if dev.LastExport == "" {
		return fail(c, http.StatusNotFound, "NO_EXPORT", "no export available", nil)
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(dev.LastExport))
}
