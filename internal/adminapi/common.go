// Package adminapi implements the REST handlers of the admin API.
package adminapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/config"
	"github.com/jeffmoIA/netdesk/internal/bridge"
	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/mailer"
	"github.com/jeffmoIA/netdesk/internal/mikrotik"
	"github.com/jeffmoIA/netdesk/internal/nodes"
	"github.com/jeffmoIA/netdesk/internal/reports"
)

// AppContext is the application surface the handlers depend on.
type AppContext interface {
	DB() *gorm.DB
	Config() *config.AppConfig
	DeviceService() *device.Service
	MikrotikService() *mikrotik.Service
	NodeService() *nodes.Service
	MailerService() *mailer.Service
	ReportService() *reports.Service
	Bridge() *bridge.Bridge
	RunSchedulerNow(id int64) error
}

// GetDB retrieves the request-scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	return c.Get("db").(*gorm.DB)
}

// GetAppContext retrieves the application context injected by the web
// server middleware.
func GetAppContext(c echo.Context) AppContext {
	return c.Get("appctx").(AppContext)
}

// ok responds 200 with the payload as-is.
func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// fail responds with a structured error body.
func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"code":    code,
		"message": message,
		"detail":  detail,
	})
}

// handleValidationError flattens validator/v10 errors into field messages.
func handleValidationError(c echo.Context, err error) error {
	if verrs, okAssert := err.(validator.ValidationErrors); okAssert {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", fields)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error())
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
func handleServiceError(c echo.Context, err error) error {
	switch e := err.(type) {
	case *device.ValidationError:
		return fail(c, http.StatusBadRequest, "INVALID_FIELD", e.Error(), map[string]string{"field": e.Field})
	case *device.DuplicateError:
		return fail(c, http.StatusConflict, "DUPLICATE", e.Error(), map[string]string{"field": e.Field})
	case *device.NotFoundError:
		return fail(c, http.StatusNotFound, "NOT_FOUND", e.Error(), nil)
	default:
		return fail(c, http.StatusInternalServerError, "INTERNAL", "Operation failed", err.Error())
	}
}

func parseIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil
}

func parsePagination(c echo.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	perPage, _ = strconv.Atoi(c.QueryParam("perPage"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	return page, perPage
}

// InitRouter registers every admin API route group. Call after
// webserver.Init.
func InitRouter() {
	registerAuthRoutes()
	registerDeviceRoutes()
	registerMikrotikRoutes()
	registerNodeRoutes()
	registerMailTemplateRoutes()
	registerDocumentRoutes()
	registerSchedulerRoutes()
}
