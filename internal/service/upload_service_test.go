package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newUploadFixture(t *testing.T, cfg UploadConfig) (*UploadService, *storage.LocalStorage) {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	return NewUploadService(blobs, signer, cfg, zap.NewNop()), blobs
}

func TestUploadServiceStoresImageWithThumbnail(t *testing.T) {
	svc, _ := newUploadFixture(t, UploadConfig{APIPrefix: "/api/v1/", ThumbnailWidth: 50, AllowedMIMEs: []string{"image/png"}})
	ctx := context.Background()
	data := pngBytes(t, 200, 100)

	result, err := svc.Upload(ctx, "Ann's photo.png", "", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.File.ContentType)
	assert.Equal(t, "Ann_s_photo.png", result.File.Name)
	assert.Equal(t, int64(len(data)), result.File.Size)
	assert.True(t, strings.HasPrefix(result.PreviewURL, "/api/v1/uploads/"))

	ref, err := svc.Resolve(ctx, result.File.ID)
	require.NoError(t, err)
	assert.Equal(t, result.File, ref)

	token := strings.TrimPrefix(result.PreviewURL, "/api/v1/uploads/")
	preview, err := svc.Preview(ctx, token)
	require.NoError(t, err)
	defer preview.Body.Close() //nolint:errcheck
	assert.Equal(t, "image/jpeg", preview.ContentType)
	thumb, err := io.ReadAll(preview.Body)
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
}

func TestUploadServicePreviewsDocumentsAsStored(t *testing.T) {
	svc, _ := newUploadFixture(t, UploadConfig{})
	ctx := context.Background()

	result, err := svc.Upload(ctx, "receipt.pdf", "application/pdf", 0, strings.NewReader("%PDF-1.4 receipt"))
	require.NoError(t, err)

	token := result.PreviewURL[strings.LastIndex(result.PreviewURL, "/")+1:]
	preview, err := svc.Preview(ctx, token)
	require.NoError(t, err)
	defer preview.Body.Close() //nolint:errcheck
	assert.Equal(t, "application/pdf", preview.ContentType)
	assert.Equal(t, "receipt.pdf", preview.Name)
	body, err := io.ReadAll(preview.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 receipt", string(body))
}

func TestUploadServiceRejections(t *testing.T) {
	svc, _ := newUploadFixture(t, UploadConfig{MaxFileSize: 16, AllowedMIMEs: []string{"image/png"}})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "big.png", "image/png", 17, strings.NewReader("x"))
	assert.True(t, errors.Is(err, appErrors.ErrUploadRejected))

	_, err = svc.Upload(ctx, "big.png", "image/png", 0, strings.NewReader(strings.Repeat("x", 17)))
	assert.True(t, errors.Is(err, appErrors.ErrUploadRejected))

	_, err = svc.Upload(ctx, "empty.png", "image/png", 0, strings.NewReader(""))
	assert.True(t, errors.Is(err, appErrors.ErrUploadRejected))

	_, err = svc.Upload(ctx, "notes.txt", "text/plain; charset=utf-8", 5, strings.NewReader("hello"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUploadRejected))
	assert.Contains(t, err.Error(), "text/plain")
}

func TestUploadServiceResolveAndPreviewErrors(t *testing.T) {
	svc, _ := newUploadFixture(t, UploadConfig{})
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "../../etc")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Resolve(ctx, "0b6e3f0e-8d4c-4a57-9b0a-4d7c3f1f3a11")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Preview(ctx, "garbage")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidToken))
}

func TestUploadServiceCleanup(t *testing.T) {
	svc, _ := newUploadFixture(t, UploadConfig{Retention: time.Nanosecond})
	ctx := context.Background()

	result, err := svc.Upload(ctx, "receipt.pdf", "application/pdf", 0, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	deleted, err := svc.Cleanup()
	require.NoError(t, err)
	assert.Contains(t, deleted, result.File.Key)
	_, err = svc.Resolve(ctx, result.File.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

type metaFailingBlobs struct {
	*storage.LocalStorage
	stored []string
}

func (b *metaFailingBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if strings.HasPrefix(key, metaFolder+"/") {
		return errors.New("disk full")
	}
	b.stored = append(b.stored, key)
	return b.LocalStorage.Put(ctx, key, r, size, contentType)
}

func TestUploadServiceRemovesBlobsWhenMetadataFails(t *testing.T) {
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	blobs := &metaFailingBlobs{LocalStorage: local}
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	svc := NewUploadService(blobs, signer, UploadConfig{ThumbnailWidth: 20}, zap.NewNop())
	ctx := context.Background()
	data := pngBytes(t, 60, 30)

	_, err = svc.Upload(ctx, "photo.png", "image/png", int64(len(data)), bytes.NewReader(data))
	require.True(t, errors.Is(err, appErrors.ErrInternal))

	require.Len(t, blobs.stored, 2)
	assert.True(t, strings.HasPrefix(blobs.stored[1], previewFolder+"/"))
	for _, key := range blobs.stored {
		_, err := local.Open(ctx, key)
		assert.ErrorIs(t, err, storage.ErrBlobNotFound, key)
	}
}
