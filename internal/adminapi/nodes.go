package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/nodes"
	"github.com/jeffmoIA/netdesk/internal/webserver"
)

// nodePayload represents the node catalog request structure
type nodePayload struct {
	Kind   string `json:"kind" validate:"required,oneof=ipran gpon IPRAN GPON"`
	Alias  string `json:"alias" validate:"required,min=1,max=50"`
	Name   string `json:"name" validate:"omitempty,max=200"`
	Ipaddr string `json:"ipaddr" validate:"required,max=15"`
	Remark string `json:"remark" validate:"omitempty,max=500"`
}

// nodeUpdatePayload relaxes validation rules for partial updates
type nodeUpdatePayload struct {
	Alias  *string `json:"alias" validate:"omitempty,min=1,max=50"`
	Name   *string `json:"name" validate:"omitempty,max=200"`
	Ipaddr *string `json:"ipaddr" validate:"omitempty,max=15"`
	Remark *string `json:"remark" validate:"omitempty,max=500"`
}

// registerNodeRoutes registers transport node API routes
func registerNodeRoutes() {
	webserver.ApiGET("/network/nodes", ListNodes)
	webserver.ApiGET("/network/nodes/:id", GetNode)
	webserver.ApiPOST("/network/nodes", CreateNode)
	webserver.ApiPUT("/network/nodes/:id", UpdateNode)
	webserver.ApiDELETE("/network/nodes/:id", DeleteNode)
}

// ListNodes retrieves the node list, filterable by kind or keyword
func ListNodes(c echo.Context) error {
	svc := GetAppContext(c).NodeService()
	ctx := c.Request().Context()

	var (
		list []domain.NetNode
		err  error
	)
	if keyword := strings.TrimSpace(c.QueryParam("keyword")); keyword != "" {
		list, err = svc.Search(ctx, keyword)
	} else {
		list, err = svc.ListByKind(ctx, c.QueryParam("kind"))
	}
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  list,
		"total": len(list),
	})
}

// GetNode fetches a single node
func GetNode(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid node ID", nil)
	}

	node, err := GetAppContext(c).NodeService().GetByID(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, node)
}

// CreateNode catalogs a node
func CreateNode(c echo.Context) error {
	var payload nodePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	node, err := GetAppContext(c).NodeService().Create(c.Request().Context(), nodes.CreateInput{
		Kind:   payload.Kind,
		Alias:  payload.Alias,
		Name:   payload.Name,
		Ipaddr: payload.Ipaddr,
		Remark: payload.Remark,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, node)
}

// UpdateNode updates a node
func UpdateNode(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid node ID", nil)
	}

	var payload nodeUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	node, err := GetAppContext(c).NodeService().Update(c.Request().Context(), id, nodes.UpdateInput{
		Alias:  payload.Alias,
		Name:   payload.Name,
		Ipaddr: payload.Ipaddr,
		Remark: payload.Remark,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return ok(c, node)
}

// DeleteNode removes a node from the catalog
func DeleteNode(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid node ID", nil)
	}

	removed, err := GetAppContext(c).NodeService().Remove(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	if !removed {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Node not found", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
