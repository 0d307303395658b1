package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/webserver"
	"github.com/jeffmoIA/netdesk/pkg/common"
)

// schedulerPayload represents the scheduler request structure
type schedulerPayload struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	TaskType string `json:"task_type" validate:"required,oneof=latency_check snmp_model api_probe config_backup"`
	Interval int    `json:"interval" validate:"required,min=10"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Config   string `json:"config" validate:"omitempty,max=2000"`
	Remark   string `json:"remark" validate:"omitempty,max=500"`
}

// schedulerUpdatePayload relaxes validation rules for partial updates
type schedulerUpdatePayload struct {
	Name     string `json:"name" validate:"omitempty,min=1,max=100"`
	TaskType string `json:"task_type" validate:"omitempty,oneof=latency_check snmp_model api_probe config_backup"`
	Interval int    `json:"interval" validate:"omitempty,min=10"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Config   string `json:"config" validate:"omitempty,max=2000"`
	Remark   string `json:"remark" validate:"omitempty,max=500"`
}

// registerSchedulerRoutes registers scheduler API routes
func registerSchedulerRoutes() {
	webserver.ApiGET("/network/schedulers", ListSchedulers)
	webserver.ApiGET("/network/schedulers/:id", GetScheduler)
	webserver.ApiPOST("/network/schedulers", CreateScheduler)
	webserver.ApiPUT("/network/schedulers/:id", UpdateScheduler)
	webserver.ApiDELETE("/network/schedulers/:id", DeleteScheduler)
	webserver.ApiPOST("/network/schedulers/:id/run", TriggerScheduler)
}

// TriggerScheduler triggers the scheduler immediately
func TriggerScheduler(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}

	if err := GetAppContext(c).RunSchedulerNow(id); err != nil {
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to run scheduler", err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// ListSchedulers retrieves the scheduler list
func ListSchedulers(c echo.Context) error {
	db := GetDB(c)
	page, perPage := parsePagination(c)

	query := db.Model(&domain.NetScheduler{})

	if name := strings.TrimSpace(c.QueryParam("name")); name != "" {
		if strings.EqualFold(db.Name(), "postgres") {
			query = query.Where("name ILIKE ?", "%"+name+"%")
		} else {
			query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
		}
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if taskType := strings.TrimSpace(c.QueryParam("task_type")); taskType != "" {
		query = query.Where("task_type = ?", taskType)
	}

	var total int64
	query.Count(&total)

	var schedulers []domain.NetScheduler
	query.Order("id DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&schedulers)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  schedulers,
		"total": total,
	})
}

// GetScheduler fetches a single scheduler
func GetScheduler(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}

	var scheduler domain.NetScheduler
	if err := GetDB(c).First(&scheduler, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Scheduler not found", nil)
	}

	return ok(c, scheduler)
}

// CreateScheduler creates a scheduler
func CreateScheduler(c echo.Context) error {
	var payload schedulerPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var count int64
	GetDB(c).Model(&domain.NetScheduler{}).Where("name = ?", payload.Name).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "NAME_EXISTS", "Scheduler name already exists", nil)
	}

	if payload.Status == "" {
		payload.Status = "enabled"
	}

	now := time.Now()
	scheduler := domain.NetScheduler{
		ID:        common.UUIDint64(),
		Name:      payload.Name,
		TaskType:  payload.TaskType,
		Interval:  payload.Interval,
		Status:    payload.Status,
		Config:    payload.Config,
		Remark:    payload.Remark,
		NextRunAt: now.Add(time.Duration(payload.Interval) * time.Second),
	}

	if err := GetDB(c).Create(&scheduler).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create scheduler", err.Error())
	}

	return c.JSON(http.StatusCreated, scheduler)
}

// UpdateScheduler updates a scheduler
func UpdateScheduler(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}

	var scheduler domain.NetScheduler
	if err := GetDB(c).First(&scheduler, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Scheduler not found", nil)
	}

	var payload schedulerUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	if payload.Name != "" && payload.Name != scheduler.Name {
		var count int64
		GetDB(c).Model(&domain.NetScheduler{}).Where("name = ? AND id != ?", payload.Name, id).Count(&count)
		if count > 0 {
			return fail(c, http.StatusConflict, "NAME_EXISTS", "Scheduler name already exists", nil)
		}
	}

	updates := make(map[string]interface{})
	if payload.Name != "" {
		updates["name"] = payload.Name
	}
	if payload.TaskType != "" {
		updates["task_type"] = payload.TaskType
	}
	if payload.Interval > 0 {
		updates["interval"] = payload.Interval
		updates["next_run_at"] = time.Now().Add(time.Duration(payload.Interval) * time.Second)
	}
	if payload.Status != "" {
		updates["status"] = payload.Status
	}
	if payload.Config != "" {
		updates["config"] = payload.Config
	}
	if payload.Remark != "" {
		updates["remark"] = payload.Remark
	}

	if len(updates) > 0 {
		if err := GetDB(c).Model(&scheduler).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update scheduler", err.Error())
		}
	}

	GetDB(c).First(&scheduler, id)

	return ok(c, scheduler)
}

// DeleteScheduler deletes a scheduler
func DeleteScheduler(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}

	var scheduler domain.NetScheduler
	if err := GetDB(c).First(&scheduler, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Scheduler not found", nil)
	}

	if err := GetDB(c).Delete(&scheduler).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete scheduler", err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
