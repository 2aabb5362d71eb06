package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/config"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/middleware/requestid"
)

const maxBackendBody = 16 << 20

type blobReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// BackendObserver is told about every backend call; status is 0 on transport errors.
type BackendObserver func(method string, status int, elapsed time.Duration)

// RecordRepository talks to the school REST backend, which owns every record.
type RecordRepository struct {
	baseURL string
	client  *http.Client
	blobs   blobReader
	observe BackendObserver
	logger  *zap.Logger
}

// RecordRepositoryOption customises the repository.
type RecordRepositoryOption func(*RecordRepository)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) RecordRepositoryOption {
	return func(r *RecordRepository) {
		if client != nil {
			r.client = client
		}
	}
}

// WithBlobReader sets where uploaded file bytes are read from on multipart updates.
func WithBlobReader(blobs blobReader) RecordRepositoryOption {
	return func(r *RecordRepository) {
		r.blobs = blobs
	}
}

// WithBackendObserver registers a latency observer.
func WithBackendObserver(observe BackendObserver) RecordRepositoryOption {
	return func(r *RecordRepository) {
		if observe != nil {
			r.observe = observe
		}
	}
}

// NewRecordRepository constructs the backend client.
func NewRecordRepository(cfg config.BackendConfig, logger *zap.Logger, opts ...RecordRepositoryOption) *RecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	repo := &RecordRepository{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		observe: func(string, int, time.Duration) {},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FetchAll lists every record under path.
func (r *RecordRepository) FetchAll(ctx context.Context, path string) ([]models.Record, error) {
	payload, err := r.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON(payload)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrBackend, fmt.Errorf("decode %s: %w", path, err), "")
	}
	records, err := recordsFrom(raw)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrBackend, fmt.Errorf("decode %s: %w", path, err), "")
	}
	return records, nil
}

// Get fetches one record.
func (r *RecordRepository) Get(ctx context.Context, path, id string) (models.Record, error) {
	payload, err := r.do(ctx, http.MethodGet, recordPath(path, id), nil, "")
	if err != nil {
		return models.Record{}, err
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return models.Record{}, appErrors.WrapAs(appErrors.ErrBackend, fmt.Errorf("decode %s/%s: %w", path, id, err), "")
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// Create posts a new record and returns what the backend stored.
func (r *RecordRepository) Create(ctx context.Context, path string, fields models.Fields) (models.Record, error) {
	body, contentType, err := r.encode(ctx, fields)
	if err != nil {
		return models.Record{}, err
	}
	payload, err := r.do(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return models.Record{}, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return models.Record{Values: fields.Clone()}, nil
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return models.Record{}, appErrors.WrapAs(appErrors.ErrBackend, fmt.Errorf("decode created %s: %w", path, err), "")
	}
	return rec, nil
}

// Update PUTs the fields of one record. Fields holding a new file are sent as
// multipart/form-data with the file bytes; otherwise the body is JSON.
func (r *RecordRepository) Update(ctx context.Context, path, id string, fields models.Fields) error {
	body, contentType, err := r.encode(ctx, fields)
	if err != nil {
		return err
	}
	_, err = r.do(ctx, http.MethodPut, recordPath(path, id), body, contentType)
	return err
}

// Delete removes a record.
func (r *RecordRepository) Delete(ctx context.Context, path, id string) error {
	_, err := r.do(ctx, http.MethodDelete, recordPath(path, id), nil, "")
	return err
}

func (r *RecordRepository) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		// a multipart body is fed by a writer goroutine; closing unblocks it
		if closer, ok := body.(io.Closer); ok {
			closer.Close() //nolint:errcheck
		}
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.HeaderKey, id)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.observe(method, 0, time.Since(start))
		return nil, appErrors.WrapAs(appErrors.ErrBackend, fmt.Errorf("%s %s: %w", method, path, err), "")
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	r.observe(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrBackend, fmt.Errorf("read %s %s: %w", method, path, err), "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("backend rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, backendError(method, path, resp.StatusCode, payload)
	}
	return payload, nil
}

func (r *RecordRepository) encode(ctx context.Context, fields models.Fields) (io.Reader, string, error) {
	if !fields.HasFile() {
		payload, err := json.Marshal(fields.Strings())
		if err != nil {
			return nil, "", fmt.Errorf("encode fields: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	}
	if r.blobs == nil {
		return nil, "", appErrors.Clone(appErrors.ErrUploadRejected, "file uploads are not configured")
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(r.writeMultipart(ctx, mw, fields))
	}()
	return pr, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (r *RecordRepository) writeMultipart(ctx context.Context, mw *multipart.Writer, fields models.Fields) error {
	for _, key := range fields.Keys() {
		value := fields[key]
		if !value.IsFile() {
			if err := mw.WriteField(key, value.Text); err != nil {
				return fmt.Errorf("write field %s: %w", key, err)
			}
			continue
		}
		ref := value.File
		src, err := r.blobs.Open(ctx, ref.Key)
		if err != nil {
			return fmt.Errorf("open upload %s: %w", ref.ID, err)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(key), quoteEscaper.Replace(ref.Name)))
		contentType := ref.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, src)
		}
		src.Close() //nolint:errcheck
		if err != nil {
			return fmt.Errorf("stream upload %s: %w", ref.ID, err)
		}
	}
	return mw.Close()
}

func recordPath(path, id string) string {
	return strings.TrimRight(path, "/") + "/" + url.PathEscape(id)
}

func decodeJSON(payload []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// recordsFrom accepts a bare array or an object wrapping it under "data".
func recordsFrom(raw interface{}) ([]models.Record, error) {
	switch v := raw.(type) {
	case []interface{}:
		records := make([]models.Record, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("item %d is not an object", i)
			}
			records = append(records, models.RecordFromMap(obj))
		}
		return records, nil
	case map[string]interface{}:
		if data, ok := v["data"]; ok {
			return recordsFrom(data)
		}
	}
	return nil, errors.New("expected an array of records")
}

func decodeRecord(payload []byte) (models.Record, error) {
	raw, err := decodeJSON(payload)
	if err != nil {
		return models.Record{}, err
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return models.Record{}, errors.New("expected a record object")
	}
	if data, ok := obj["data"].(map[string]interface{}); ok {
		obj = data
	}
	return models.RecordFromMap(obj), nil
}

func backendError(method, path string, status int, payload []byte) error {
	message := backendMessage(payload)
	cause := fmt.Errorf("%s %s: status %d", method, path, status)
	if status == http.StatusNotFound {
		if message == "" {
			message = "record not found"
		}
		return appErrors.WrapAs(appErrors.ErrNotFound, cause, message)
	}
	if message != "" {
		cause = fmt.Errorf("%w: %s", cause, message)
	}
	return appErrors.WrapAs(appErrors.ErrBackend, cause, "")
}

func backendMessage(payload []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		text := strings.TrimSpace(string(payload))
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	for _, key := range []string{"message", "error", "msg"} {
		if msg, ok := body[key].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}
