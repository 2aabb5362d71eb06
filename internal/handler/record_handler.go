package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admin-console/internal/dto"
	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/internal/service"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/response"
)

type recordService interface {
	Entities() []models.EntityInfo
	Describe(entityName string) (models.EntityInfo, error)
	List(ctx context.Context, entityName string, query models.ListQuery) ([]models.Row, *models.Pagination, error)
	Export(ctx context.Context, entityName string, query models.ListQuery, format string) (*service.ExportFile, error)
	Create(ctx context.Context, entityName string, fields models.Fields) (*models.Row, error)
	Delete(ctx context.Context, entityName, id string) error
}

// Query parameters that are not column filters.
var reservedListParams = map[string]struct{}{
	"search": {}, "q": {}, "sort": {}, "order": {}, "page": {}, "limit": {}, "page_size": {}, "format": {},
}

// RecordHandler exposes the generic list view for every school entity.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler constructs a record handler.
func NewRecordHandler(service recordService) *RecordHandler {
	return &RecordHandler{service: service}
}

// Entities godoc
// @Summary List console entities
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /entities [get]
func (h *RecordHandler) Entities(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Entities(), nil)
}

// List godoc
// @Summary List records of an entity
// @Tags Records
// @Produce json
// @Param entity path string true "Entity name"
// @Param search query string false "Substring search over searchable columns"
// @Param sort query string false "Sort field"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /records/{entity} [get]
func (h *RecordHandler) List(c *gin.Context) {
	entityName := c.Param("entity")
	info, err := h.service.Describe(entityName)
	if err != nil {
		response.Error(c, err)
		return
	}
	query, err := parseListQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), entityName, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RecordList{Entity: info, Records: rows}, pagination)
}

// Export godoc
// @Summary Export the filtered list of an entity
// @Tags Records
// @Produce text/csv
// @Produce application/pdf
// @Param entity path string true "Entity name"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /records/{entity}/export [get]
func (h *RecordHandler) Export(c *gin.Context) {
	query, err := parseListQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Export(c.Request.Context(), c.Param("entity"), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Create godoc
// @Summary Create a record
// @Tags Records
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param payload body dto.CreateRecordRequest true "Record fields"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /records/{entity} [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}
	row, err := h.service.Create(c.Request.Context(), c.Param("entity"), req.ToFields())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// Delete godoc
// @Summary Delete a record
// @Tags Records
// @Param entity path string true "Entity name"
// @Param id path string true "Record ID"
// @Success 204
// @Router /records/{entity}/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("entity"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseListQuery(c *gin.Context) (models.ListQuery, error) {
	query := models.ListQuery{
		Search: c.Query("search"),
		Sort:   c.Query("sort"),
		Order:  c.Query("order"),
	}
	if query.Search == "" {
		query.Search = c.Query("q")
	}
	var err error
	if query.Page, err = intQuery(c, "page"); err != nil {
		return query, err
	}
	if query.PageSize, err = intQuery(c, "limit"); err != nil {
		return query, err
	}
	if query.PageSize == 0 {
		if query.PageSize, err = intQuery(c, "page_size"); err != nil {
			return query, err
		}
	}
	for key, values := range c.Request.URL.Query() {
		if _, reserved := reservedListParams[key]; reserved || len(values) == 0 {
			continue
		}
		if query.Filters == nil {
			query.Filters = make(map[string]string)
		}
		query.Filters[key] = values[0]
	}
	return query, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return value, nil
}
