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

// documentPayload represents the bandwidth transaction record structure
type documentPayload struct {
	Title           string `json:"title" validate:"required,min=1,max=200"`
	CustomerId      string `json:"customer_id" validate:"omitempty,max=50"`
	CustomerName    string `json:"customer_name" validate:"required,max=200"`
	CustomerAddress string `json:"customer_address" validate:"omitempty,max=300"`
	Bandwidth       string `json:"bandwidth" validate:"required,max=50"`
	Transaction     string `json:"transaction" validate:"required,oneof=UPGRADE DOWNGRADE"`
	Topology        string `json:"topology" validate:"omitempty,max=100"`
	Engineer        string `json:"engineer" validate:"omitempty,max=100"`
	NodeId          int64  `json:"node_id,string" validate:"omitempty"`
	DeviceIp        string `json:"device_ip" validate:"omitempty,max=15"`
	Content         string `json:"content" validate:"omitempty"`
}

// registerDocumentRoutes registers transaction document routes
func registerDocumentRoutes() {
	webserver.ApiGET("/network/documents", ListDocuments)
	webserver.ApiGET("/network/documents/:id", GetDocument)
	webserver.ApiPOST("/network/documents", CreateDocument)
	webserver.ApiDELETE("/network/documents/:id", DeleteDocument)
}

// ListDocuments retrieves transaction documents with filters
func ListDocuments(c echo.Context) error {
	db := GetDB(c)
	page, perPage := parsePagination(c)

	query := db.Model(&domain.Document{})
	if customer := strings.TrimSpace(c.QueryParam("customer")); customer != "" {
		query = query.Where("LOWER(customer_name) LIKE ?", "%"+strings.ToLower(customer)+"%")
	}
	if tx := strings.TrimSpace(c.QueryParam("transaction")); tx != "" {
		query = query.Where("transaction_type = ?", strings.ToUpper(tx))
	}

	var total int64
	query.Count(&total)

	var docs []domain.Document
	query.Order("created_at DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&docs)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  docs,
		"total": total,
	})
}

// GetDocument fetches a single document
func GetDocument(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID", nil)
	}

	var doc domain.Document
	if err := GetDB(c).First(&doc, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
	}
	return ok(c, doc)
}

// CreateDocument records a bandwidth transaction
func CreateDocument(c echo.Context) error {
	var payload documentPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	// A referenced node must exist.
	if payload.NodeId != 0 {
		var count int64
		GetDB(c).Model(&domain.NetNode{}).Where("id = ?", payload.NodeId).Count(&count)
		if count == 0 {
			return fail(c, http.StatusBadRequest, "INVALID_NODE", "Referenced node does not exist", nil)
		}
	}

	doc := domain.Document{
		ID:              common.UUIDint64(),
		Title:           payload.Title,
		CustomerId:      payload.CustomerId,
		CustomerName:    payload.CustomerName,
		CustomerAddress: payload.CustomerAddress,
		Bandwidth:       payload.Bandwidth,
		Transaction:     payload.Transaction,
		Topology:        payload.Topology,
		Engineer:        payload.Engineer,
		NodeId:          payload.NodeId,
		DeviceIp:        payload.DeviceIp,
		Content:         payload.Content,
		CreatedAt:       time.Now(),
	}
	if err := GetDB(c).Create(&doc).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create document", err.Error())
	}
	return c.JSON(http.StatusCreated, doc)
}

// DeleteDocument deletes a transaction document
func DeleteDocument(c echo.Context) error {
	id, okParse := parseIDParam(c)
	if !okParse {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID", nil)
	}

	res := GetDB(c).Delete(&domain.Document{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete document", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
