package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
)

func TestNotificationServiceCountsNotices(t *testing.T) {
	svc := NewNotificationService(2, nil)
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC)

	require.NoError(t, svc.HandleRecordCreated(ctx, events.Event{Entity: "expense", RecordID: "e1"}))
	for i, title := range []string{"Sports day", "Exam week", "Holiday"} {
		rec := models.Record{ID: title, Values: models.Fields{"title": models.Text(title)}}
		require.NoError(t, svc.HandleRecordCreated(ctx, events.Event{Entity: "notice", RecordID: rec.ID, Payload: rec, Published: at.Add(time.Duration(i) * time.Minute)}))
	}

	summary := svc.Summary()
	assert.Equal(t, 3, summary.Unread)
	require.Len(t, summary.Recent, 2)
	assert.Equal(t, "Holiday", summary.Recent[0].Title)
	assert.Equal(t, "Exam week", summary.Recent[1].Title)

	cleared := svc.MarkRead()
	assert.Equal(t, 0, cleared.Unread)
	assert.Empty(t, cleared.Recent)
}
