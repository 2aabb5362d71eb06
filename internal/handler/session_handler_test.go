package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

type sessionServiceMock struct {
	view      *models.SessionView
	err       error
	calls     []string
	lastKey   string
	lastValue string
}

func (m *sessionServiceMock) record(call string) (*models.SessionView, error) {
	m.calls = append(m.calls, call)
	return m.view, m.err
}

func (m *sessionServiceMock) Open(ctx context.Context, entityName, recordID string) (*models.SessionView, error) {
	m.lastKey, m.lastValue = entityName, recordID
	return m.record("open")
}

func (m *sessionServiceMock) View(ctx context.Context, id string) (*models.SessionView, error) {
	return m.record("view")
}

func (m *sessionServiceMock) SetText(ctx context.Context, id, key, value string) (*models.SessionView, error) {
	m.lastKey, m.lastValue = key, value
	return m.record("setText")
}

func (m *sessionServiceMock) SetFile(ctx context.Context, id, key, fileID string) (*models.SessionView, error) {
	m.lastKey, m.lastValue = key, fileID
	return m.record("setFile")
}

func (m *sessionServiceMock) Submit(ctx context.Context, id string) (*models.SessionView, error) {
	return m.record("submit")
}

func (m *sessionServiceMock) ConfirmChanges(ctx context.Context, id string) (*models.SessionView, error) {
	return m.record("confirm")
}

func (m *sessionServiceMock) Back(ctx context.Context, id string) (*models.SessionView, error) {
	return m.record("back")
}

func (m *sessionServiceMock) BackToEdit(ctx context.Context, id string) (*models.SessionView, error) {
	return m.record("backToEdit")
}

func (m *sessionServiceMock) ConfirmSave(ctx context.Context, id string) (*models.SessionView, error) {
	return m.record("save")
}

func (m *sessionServiceMock) Cancel(ctx context.Context, id string) error {
	m.calls = append(m.calls, "cancel")
	return m.err
}

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestSessionHandlerOpen(t *testing.T) {
	mockSvc := &sessionServiceMock{view: &models.SessionView{ID: "sess-1", Stage: models.StageEditing}}
	handler := NewSessionHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/sessions", `{"entity":"student","recordId":"s1"}`)
	handler.Open(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "student", mockSvc.lastKey)
	assert.Equal(t, "s1", mockSvc.lastValue)

	var envelope struct {
		Data models.SessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "sess-1", envelope.Data.ID)

	c, w = newJSONContext(http.MethodPost, "/sessions", `{"entity":"student"}`)
	handler.Open(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerSetField(t *testing.T) {
	mockSvc := &sessionServiceMock{view: &models.SessionView{ID: "sess-1"}}
	handler := NewSessionHandler(mockSvc)

	c, w := newJSONContext(http.MethodPut, "/sessions/sess-1/fields/name", `{"value":""}`)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "key", Value: "name"}}
	handler.SetField(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"setText"}, mockSvc.calls)
	assert.Equal(t, "", mockSvc.lastValue)

	c, w = newJSONContext(http.MethodPut, "/sessions/sess-1/fields/photo", `{"fileId":"f-1"}`)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "key", Value: "photo"}}
	handler.SetField(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "f-1", mockSvc.lastValue)

	c, w = newJSONContext(http.MethodPut, "/sessions/sess-1/fields/photo", `{}`)
	handler.SetField(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodPut, "/sessions/sess-1/fields/photo", `{"value":"a","fileId":"f-1"}`)
	handler.SetField(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, mockSvc.calls, 2)
}

func TestSessionHandlerMapsWizardErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid stage", appErrors.Clone(appErrors.ErrInvalidStage, "there are no changes to confirm"), http.StatusConflict, "INVALID_STAGE"},
		{"save in progress", appErrors.ErrSaveInProgress, http.StatusConflict, "SAVE_IN_PROGRESS"},
		{"session busy", appErrors.ErrSessionBusy, http.StatusConflict, "SESSION_BUSY"},
		{"save failed", appErrors.WrapAs(appErrors.ErrSaveFailed, assert.AnError, ""), http.StatusBadGateway, "SAVE_FAILED"},
		{"expired", appErrors.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewSessionHandler(&sessionServiceMock{err: tc.err})
			c, w := newJSONContext(http.MethodPost, "/sessions/sess-1/save", "")
			c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
			handler.Save(c)
			require.Equal(t, tc.status, w.Code)

			var envelope struct {
				Error appErrors.Error `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
			assert.Equal(t, tc.code, envelope.Error.Code)
		})
	}
}

func TestSessionHandlerBackTarget(t *testing.T) {
	mockSvc := &sessionServiceMock{view: &models.SessionView{ID: "sess-1"}}
	handler := NewSessionHandler(mockSvc)

	c, _ := newJSONContext(http.MethodPost, "/sessions/sess-1/back", "")
	handler.Back(c)
	c, _ = newJSONContext(http.MethodPost, "/sessions/sess-1/back?to=edit", "")
	handler.Back(c)
	assert.Equal(t, []string{"back", "backToEdit"}, mockSvc.calls)

	c, _ = newJSONContext(http.MethodDelete, "/sessions/sess-1", "")
	handler.Cancel(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}
