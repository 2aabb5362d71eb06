package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admin-console/internal/dto"
	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/response"
)

type sessionService interface {
	Open(ctx context.Context, entityName, recordID string) (*models.SessionView, error)
	View(ctx context.Context, id string) (*models.SessionView, error)
	SetText(ctx context.Context, id, key, value string) (*models.SessionView, error)
	SetFile(ctx context.Context, id, key, fileID string) (*models.SessionView, error)
	Submit(ctx context.Context, id string) (*models.SessionView, error)
	ConfirmChanges(ctx context.Context, id string) (*models.SessionView, error)
	Back(ctx context.Context, id string) (*models.SessionView, error)
	BackToEdit(ctx context.Context, id string) (*models.SessionView, error)
	ConfirmSave(ctx context.Context, id string) (*models.SessionView, error)
	Cancel(ctx context.Context, id string) error
}

// SessionHandler exposes the edit, review and save wizard.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Open godoc
// @Summary Start editing a record
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.OpenSessionRequest true "Record to edit"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	view, err := h.service.Open(c.Request.Context(), req.Entity, req.RecordID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Render an edit session for its current stage
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// SetField godoc
// @Summary Change one draft field
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param key path string true "Field key"
// @Param payload body dto.SetFieldRequest true "Text value or uploaded file id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/fields/{key} [put]
func (h *SessionHandler) SetField(c *gin.Context) {
	var req dto.SetFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid field payload"))
		return
	}
	ctx := c.Request.Context()
	id, key := c.Param("id"), c.Param("key")
	var (
		view *models.SessionView
		err  error
	)
	switch {
	case req.FileID != "" && req.Value != nil:
		err = appErrors.Clone(appErrors.ErrValidation, "provide either value or fileId, not both")
	case req.FileID != "":
		view, err = h.service.SetFile(ctx, id, key, req.FileID)
	case req.Value != nil:
		view, err = h.service.SetText(ctx, id, key, *req.Value)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "value or fileId is required")
	}
	h.respond(c, view, err)
}

// Submit godoc
// @Summary Compute the change list and review it
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	view, err := h.service.Submit(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// Confirm godoc
// @Summary Accept the change list and review the full record
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/confirm [post]
func (h *SessionHandler) Confirm(c *gin.Context) {
	view, err := h.service.ConfirmChanges(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// Back godoc
// @Summary Step back one review stage, or straight to editing with to=edit
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param to query string false "edit to return to the form"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/back [post]
func (h *SessionHandler) Back(c *gin.Context) {
	var (
		view *models.SessionView
		err  error
	)
	if c.Query("to") == "edit" {
		view, err = h.service.BackToEdit(c.Request.Context(), c.Param("id"))
	} else {
		view, err = h.service.Back(c.Request.Context(), c.Param("id"))
	}
	h.respond(c, view, err)
}

// Save godoc
// @Summary Persist the confirmed draft
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /sessions/{id}/save [post]
func (h *SessionHandler) Save(c *gin.Context) {
	view, err := h.service.ConfirmSave(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// Cancel godoc
// @Summary Discard an edit session
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *SessionHandler) respond(c *gin.Context, view *models.SessionView, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
