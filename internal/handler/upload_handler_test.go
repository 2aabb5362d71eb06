package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/internal/service"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

type uploadServiceMock struct {
	filename string
	body     string
}

func (m *uploadServiceMock) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*service.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.filename, m.body = filename, string(data)
	return &service.UploadResult{File: models.FileRef{ID: "f-1", Name: filename}, PreviewURL: "/api/v1/uploads/tok"}, nil
}

func (m *uploadServiceMock) Preview(ctx context.Context, token string) (*service.UploadPreview, error) {
	if token != "tok" {
		return nil, appErrors.ErrInvalidToken
	}
	return &service.UploadPreview{Name: "photo.jpg", ContentType: "image/jpeg", Body: io.NopCloser(strings.NewReader("jpeg"))}, nil
}

func TestUploadHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &uploadServiceMock{}
	handler := NewUploadHandler(mockSvc, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req

	handler.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "photo.png", mockSvc.filename)
	assert.Equal(t, "png-bytes", mockSvc.body)
	assert.Contains(t, w.Body.String(), `"previewUrl":"/api/v1/uploads/tok"`)

	c, w = newJSONContext(http.MethodPost, "/uploads", `{}`)
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerPreview(t *testing.T) {
	handler := NewUploadHandler(&uploadServiceMock{}, nil)

	c, w := newJSONContext(http.MethodGet, "/uploads/tok", "")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg", w.Body.String())

	c, w = newJSONContext(http.MethodGet, "/uploads/bad", "")
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Preview(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
