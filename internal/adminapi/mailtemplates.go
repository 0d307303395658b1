package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jeffmoIA/netdesk/internal/mailer"
	"github.com/jeffmoIA/netdesk/internal/webserver"
)

// mailTemplatePayload represents the template request structure
type mailTemplatePayload struct {
	Name    string `json:"name" validate:"required,min=1,max=100"`
	Subject string `json:"subject" validate:"required,max=500"`
	Body    string `json:"body" validate:"required"`
	Remark  string `json:"remark" validate:"omitempty,max=500"`
}

// mailTemplateUpdatePayload relaxes validation rules for partial updates
type mailTemplateUpdatePayload struct {
	Name    string `json:"name" validate:"omitempty,min=1,max=100"`
	Subject string `json:"subject" validate:"omitempty,max=500"`
	Body    string `json:"body"`
	Remark  string `json:"remark" validate:"omitempty,max=500"`
}

// notifyPayload requests a rendered notification delivery
type notifyPayload struct {
	Template string                 `json:"template" validate:"required"`
	To       []string               `json:"to" validate:"required,min=1,dive,email"`
	Data     map[string]interface{} `json:"data"`
}

// registerMailTemplateRoutes registers notification template routes
func registerMailTemplateRoutes() {
	webserver.ApiGET("/notify/templates", ListMailTemplates)
	webserver.ApiPOST("/notify/templates", CreateMailTemplate)
	webserver.ApiPUT("/notify/templates/:id", UpdateMailTemplate)
	webserver.ApiDELETE("/notify/templates/:id", DeleteMailTemplate)
	webserver.ApiPOST("/notify/send", SendNotification)
}

// ListMailTemplates retrieves all notification templates
func ListMailTemplates(c echo.Context) error {
	tpls, err := GetAppContext(c).MailerService().ListTemplates(c.Request().Context())
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  tpls,
		"total": len(tpls),
	})
}

// CreateMailTemplate creates a notification template
func CreateMailTemplate(c echo.Context) error {
	var payload mailTemplatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	tpl, err := GetAppContext(c).MailerService().CreateTemplate(c.Request().Context(), mailer.TemplateInput{
		Name:    payload.Name,
		Subject: payload.Subject,
		Body:    payload.Body,
		Remark:  payload.Remark,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

// UpdateMailTemplate updates a notification template
func UpdateMailTemplate(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template ID", nil)
	}

	var payload mailTemplateUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	tpl, err := GetAppContext(c).MailerService().UpdateTemplate(c.Request().Context(), id, mailer.TemplateInput{
		Name:    payload.Name,
		Subject: payload.Subject,
		Body:    payload.Body,
		Remark:  payload.Remark,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, tpl)
}

// DeleteMailTemplate deletes a notification template
func DeleteMailTemplate(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid template ID", nil)
	}

	removed, err := GetAppContext(c).MailerService().RemoveTemplate(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	if !removed {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// SendNotification renders a template and mails it
func SendNotification(c echo.Context) error {
	var payload notifyPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	err := GetAppContext(c).MailerService().SendNotification(
		c.Request().Context(), payload.Template, payload.Data, payload.To...)
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, map[string]string{"status": "sent"})
}
