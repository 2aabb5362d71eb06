package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/service"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/response"
)

type uploadService interface {
	Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*service.UploadResult, error)
	Preview(ctx context.Context, token string) (*service.UploadPreview, error)
}

// UploadHandler accepts files for file-valued fields and serves previews.
type UploadHandler struct {
	service uploadService
	logger  *zap.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service uploadService, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{service: service, logger: logger}
}

// Upload godoc
// @Summary Upload a file for a file-valued field
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrUploadRejected, err, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.service.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Preview godoc
// @Summary Preview an uploaded file through a signed token
// @Tags Uploads
// @Produce octet-stream
// @Param token path string true "Signed preview token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /uploads/{token} [get]
func (h *UploadHandler) Preview(c *gin.Context) {
	preview, err := h.service.Preview(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer preview.Body.Close() //nolint:errcheck

	c.Header("Content-Type", preview.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", preview.Name))
	c.Header("Cache-Control", "private, max-age=300")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, preview.Body); err != nil {
		h.logger.Warn("preview stream interrupted", zap.Error(err))
	}
}
