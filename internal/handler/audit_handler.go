package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/response"
)

type auditService interface {
	History(ctx context.Context, entityName, recordID string, limit, offset int) ([]models.ChangeSetAudit, error)
}

// AuditHandler serves the saved change sets of a record.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(service auditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// History godoc
// @Summary Change history of one record
// @Tags Audit
// @Produce json
// @Param entity path string true "Entity name"
// @Param id path string true "Record ID"
// @Param limit query int false "Maximum entries"
// @Param offset query int false "Entries to skip"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audit/{entity}/{id} [get]
func (h *AuditHandler) History(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		response.Error(c, err)
		return
	}
	audits, err := h.service.History(c.Request.Context(), c.Param("entity"), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, audits, nil)
}
