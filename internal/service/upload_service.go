package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/storage"
)

const (
	uploadFolder  = "uploads"
	previewFolder = "previews"
	metaFolder    = "meta"
)

type uploadCleaner interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// UploadConfig tunes upload acceptance and previews.
type UploadConfig struct {
	APIPrefix      string
	MaxFileSize    int64
	AllowedMIMEs   []string
	ThumbnailWidth int
	Retention      time.Duration
}

// UploadResult is returned to the console after a successful upload.
type UploadResult struct {
	File       models.FileRef `json:"file"`
	PreviewURL string         `json:"previewUrl"`
	ExpiresAt  time.Time      `json:"expiresAt"`
}

// UploadPreview is an open handle on a previewable blob.
type UploadPreview struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}

// UploadService stores files for file-valued fields until a save hands them
// to the school backend.
type UploadService struct {
	blobs  storage.BlobStore
	signer *storage.SignedURLSigner
	logger *zap.Logger
	cfg    UploadConfig
	now    func() time.Time
}

// NewUploadService constructs the upload service.
func NewUploadService(blobs storage.BlobStore, signer *storage.SignedURLSigner, cfg UploadConfig, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if cfg.ThumbnailWidth <= 0 {
		cfg.ThumbnailWidth = 240
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	return &UploadService{blobs: blobs, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

// Upload validates and stores one file. Images additionally get a JPEG thumbnail
// that the preview URL points at.
func (s *UploadService) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*UploadResult, error) {
	if size > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrUploadRejected, err, "failed to read upload")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUploadRejected, "file is empty")
	}

	contentType = detectContentType(contentType, data)
	if !s.allowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrUploadRejected, fmt.Sprintf("file type %s is not allowed", contentType))
	}

	id, key := storage.UploadKey(uploadFolder, filename, s.now())
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to store upload")
	}
	ref := models.FileRef{
		ID:          id,
		Name:        storage.SanitizeFilename(filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Key:         key,
	}

	previewKey := key
	if strings.HasPrefix(contentType, "image/") {
		if thumbKey, err := s.storeThumbnail(ctx, id, data); err != nil {
			s.logger.Warn("thumbnail generation failed", zap.String("file_id", id), zap.Error(err))
		} else {
			previewKey = thumbKey
		}
	}

	if err := s.storeMeta(ctx, ref); err != nil {
		_ = s.blobs.Delete(ctx, key)
		if previewKey != key {
			_ = s.blobs.Delete(ctx, previewKey)
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to store upload")
	}

	token, expiresAt, err := s.signer.Generate(id, previewKey)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to sign preview")
	}
	s.logger.Info("file uploaded", zap.String("file_id", id), zap.String("content_type", contentType), zap.Int("size", len(data)))
	return &UploadResult{File: ref, PreviewURL: s.previewURL(token), ExpiresAt: expiresAt}, nil
}

// Resolve implements FileResolver.
func (s *UploadService) Resolve(ctx context.Context, fileID string) (models.FileRef, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return models.FileRef{}, appErrors.Clone(appErrors.ErrValidation, "fileId must be a valid upload id")
	}
	rc, err := s.blobs.Open(ctx, metaKey(fileID))
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return models.FileRef{}, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return models.FileRef{}, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to read upload")
	}
	defer rc.Close() //nolint:errcheck

	var ref models.FileRef
	if err := json.NewDecoder(rc).Decode(&ref); err != nil {
		return models.FileRef{}, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to read upload")
	}
	return ref, nil
}

// Preview opens the blob a signed token points at.
func (s *UploadService) Preview(ctx context.Context, token string) (*UploadPreview, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInvalidToken, err, "")
	}
	ref, err := s.Resolve(ctx, claims.FileID)
	if err != nil {
		return nil, err
	}
	body, err := s.blobs.Open(ctx, claims.Key)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to open upload")
	}
	preview := &UploadPreview{Name: ref.Name, ContentType: ref.ContentType, Body: body}
	if claims.Key != ref.Key {
		preview.ContentType = "image/jpeg"
	}
	return preview, nil
}

// Cleanup removes uploads older than the retention window. Only stores that
// can enumerate their contents are swept; others rely on bucket lifecycle rules.
func (s *UploadService) Cleanup() ([]string, error) {
	cleaner, ok := s.blobs.(uploadCleaner)
	if !ok {
		return nil, nil
	}
	return cleaner.CleanupOlderThan(s.cfg.Retention)
}

func (s *UploadService) storeThumbnail(ctx context.Context, id string, data []byte) (string, error) {
	thumb, err := storage.Thumbnail(bytes.NewReader(data), s.cfg.ThumbnailWidth)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s.jpg", previewFolder, id)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

func (s *UploadService) storeMeta(ctx context.Context, ref models.FileRef) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, metaKey(ref.ID), bytes.NewReader(payload), int64(len(payload)), "application/json")
}

func (s *UploadService) allowed(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (s *UploadService) tooLarge() error {
	return appErrors.Clone(appErrors.ErrUploadRejected, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
}

func (s *UploadService) previewURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/uploads/%s", prefix, token)
}

func metaKey(fileID string) string {
	return fmt.Sprintf("%s/%s.json", metaFolder, fileID)
}

// detectContentType trusts the declared type unless it is missing or generic.
func detectContentType(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mediaType
}
