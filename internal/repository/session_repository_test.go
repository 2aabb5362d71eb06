package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

func TestMemorySessionStoreSaveGetDelete(t *testing.T) {
	store := NewMemorySessionStore(0)
	ctx := context.Background()

	session := models.EditSession{ID: "s-1", Entity: "student", RecordID: "stu-1", Stage: models.StageEditing,
		Draft: models.Fields{"name": models.Text("Alice")}}
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Draft.Get("name").Text)

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Get(ctx, "s-1")
	require.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.EditSession{ID: "s-1"}))
	now = now.Add(30 * time.Second)
	_, err := store.Get(ctx, "s-1")
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	_, err = store.Get(ctx, "s-1")
	require.ErrorIs(t, err, appErrors.ErrSessionNotFound)
}

func TestMemorySessionStoreLock(t *testing.T) {
	store := NewMemorySessionStore(0)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	release, err := store.Lock(ctx, "s-1", 10*time.Second)
	require.NoError(t, err)

	_, err = store.Lock(ctx, "s-1", 10*time.Second)
	require.ErrorIs(t, err, appErrors.ErrSessionBusy)

	other, err := store.Lock(ctx, "s-2", 10*time.Second)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := store.Lock(ctx, "s-1", 10*time.Second)
	require.NoError(t, err)

	now = now.Add(11 * time.Second)
	stolen, err := store.Lock(ctx, "s-1", 10*time.Second)
	require.NoError(t, err)
	again()
	_, err = store.Lock(ctx, "s-1", 10*time.Second)
	require.ErrorIs(t, err, appErrors.ErrSessionBusy)
	stolen()
}
