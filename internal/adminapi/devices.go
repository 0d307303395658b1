package adminapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jeffmoIA/netdesk/internal/bridge"
	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/reports"
	"github.com/jeffmoIA/netdesk/internal/webserver"
)

// devicePayload represents the device registration request structure
type devicePayload struct {
	Name          string `json:"name" validate:"required,min=1,max=100"`
	Ipaddr        string `json:"ipaddr" validate:"required,max=15"`
	Username      string `json:"username" validate:"omitempty,max=50"`
	Password      string `json:"password" validate:"omitempty,max=128"`
	Model         string `json:"model" validate:"omitempty,max=100"`
	Firmware      string `json:"firmware" validate:"omitempty,max=50"`
	Location      string `json:"location" validate:"omitempty,max=200"`
	CustomerId    string `json:"customer_id" validate:"omitempty,max=50"`
	CustomerName  string `json:"customer_name" validate:"omitempty,max=200"`
	SnmpPort      int    `json:"snmp_port" validate:"omitempty,min=1,max=65535"`
	SnmpCommunity string `json:"snmp_community" validate:"omitempty,max=100"`
	Notes         string `json:"notes" validate:"omitempty,max=500"`
}

// deviceUpdatePayload relaxes validation rules for partial updates
type deviceUpdatePayload struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Ipaddr       *string `json:"ipaddr" validate:"omitempty,max=15"`
	Username     *string `json:"username" validate:"omitempty,max=50"`
	Password     *string `json:"password" validate:"omitempty,max=128"`
	Model        *string `json:"model" validate:"omitempty,max=100"`
	Firmware     *string `json:"firmware" validate:"omitempty,max=50"`
	Location     *string `json:"location" validate:"omitempty,max=200"`
	Status       *string `json:"status" validate:"omitempty,oneof=active inactive maintenance error"`
	CustomerId   *string `json:"customer_id" validate:"omitempty,max=50"`
	CustomerName *string `json:"customer_name" validate:"omitempty,max=200"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// registerDeviceRoutes registers device registry API routes
func registerDeviceRoutes() {
	webserver.ApiGET("/network/devices", ListDevices)
	webserver.ApiGET("/network/devices/statistics", DeviceStatistics)
	webserver.ApiGET("/network/devices/inventory.xlsx", DeviceInventoryExport)
	webserver.ApiGET("/network/devices/:id", GetDevice)
	webserver.ApiPOST("/network/devices", RegisterDevice)
	webserver.ApiPUT("/network/devices/:id", UpdateDevice)
	webserver.ApiDELETE("/network/devices/:id", DeleteDevice)
}

// ListDevices retrieves the device list with optional filters
func ListDevices(c echo.Context) error {
	svc := GetAppContext(c).DeviceService()
	ctx := c.Request().Context()

	var (
		devs []domain.NetDevice
		err  error
	)
	switch {
	case strings.TrimSpace(c.QueryParam("keyword")) != "":
		devs, err = svc.Search(ctx, c.QueryParam("keyword"))
	case strings.TrimSpace(c.QueryParam("status")) != "":
		devs, err = svc.FindByStatus(ctx, c.QueryParam("status"))
	case c.QueryParam("reachable") == "true":
		devs, err = svc.ListReachable(ctx)
	default:
		devs, err = svc.Search(ctx, "")
	}
	if err != nil {
		return handleServiceError(c, err)
	}

	page, perPage := parsePagination(c)
	total := len(devs)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  devs[start:end],
		"total": total,
	})
}

// GetDevice fetches a single device
func GetDevice(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	dev, err := GetAppContext(c).DeviceService().GetByID(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, dev)
}

// RegisterDevice registers a device
func RegisterDevice(c echo.Context) error {
	var payload devicePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	dev, err := GetAppContext(c).DeviceService().Register(c.Request().Context(), device.RegisterInput{
		Name:         payload.Name,
		Ipaddr:       payload.Ipaddr,
		Username:     payload.Username,
		Password:     payload.Password,
		Model:        payload.Model,
		Firmware:     payload.Firmware,
		Location:     payload.Location,
		CustomerId:   payload.CustomerId,
		CustomerName: payload.CustomerName,
		Notes:        payload.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if payload.SnmpCommunity != "" || payload.SnmpPort > 0 {
		GetDB(c).Model(&domain.NetDevice{}).Where("id = ?", dev.ID).Updates(map[string]interface{}{
			"snmp_port":      payload.SnmpPort,
			"snmp_community": payload.SnmpCommunity,
		})
	}

	// First reachability check runs in the background; registration
	// never waits on the network.
	appCtx := GetAppContext(c)
	appCtx.Bridge().Submit(bridge.LabelProbe, func(ctx context.Context) (bool, string, interface{}) {
		reachable, err := appCtx.MikrotikService().VerifyConnectivity(ctx, dev.ID)
		if err != nil {
			return false, err.Error(), nil
		}
		return true, "probe finished", map[string]interface{}{"device_id": dev.ID, "reachable": reachable}
	})

	return c.JSON(http.StatusCreated, dev)
}

// UpdateDevice updates a device
func UpdateDevice(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	var payload deviceUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	dev, err := GetAppContext(c).DeviceService().Update(c.Request().Context(), id, device.UpdateInput{
		Name:         payload.Name,
		Ipaddr:       payload.Ipaddr,
		Username:     payload.Username,
		Password:     payload.Password,
		Model:        payload.Model,
		Firmware:     payload.Firmware,
		Location:     payload.Location,
		Status:       payload.Status,
		CustomerId:   payload.CustomerId,
		CustomerName: payload.CustomerName,
		Notes:        payload.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, dev)
}

// DeleteDevice deletes a device
func DeleteDevice(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid device ID", nil)
	}

	appCtx := GetAppContext(c)
	removed, err := appCtx.DeviceService().Remove(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	if !removed {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Device not found", nil)
	}

	// Results of probes still in flight refer to a device that no
	// longer exists.
	appCtx.Bridge().Invalidate(bridge.LabelProbe)

	return c.NoContent(http.StatusNoContent)
}

// DeviceStatistics aggregates registry-wide counters
func DeviceStatistics(c echo.Context) error {
	stats, err := GetAppContext(c).DeviceService().Statistics(c.Request().Context())
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, stats)
}

// DeviceInventoryExport streams the inventory workbook
func DeviceInventoryExport(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+reports.InventoryFilename())
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)
	return GetAppContext(c).ReportService().WriteInventory(c.Request().Context(), c.Response())
}
