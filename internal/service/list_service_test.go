package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/entity"
	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

type memoryRecordCache struct {
	mu          sync.Mutex
	lists       map[string][]models.Record
	invalidated []string
}

func newMemoryRecordCache() *memoryRecordCache {
	return &memoryRecordCache{lists: make(map[string][]models.Record)}
}

func (c *memoryRecordCache) Load(ctx context.Context, entity string) ([]models.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	records, ok := c.lists[entity]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return records, nil
}

func (c *memoryRecordCache) Store(ctx context.Context, entity string, records []models.Record, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[entity] = records
	return nil
}

func (c *memoryRecordCache) Invalidate(ctx context.Context, entity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, entity)
	c.invalidated = append(c.invalidated, entity)
	return nil
}

func expenseRecords() []models.Record {
	return []models.Record{
		{ID: "e1", Values: models.Fields{"title": models.Text("Stationery"), "category": models.Text("Office"), "amount": models.Text("120"), "description": models.Text("pens")}},
		{ID: "e2", Values: models.Fields{"title": models.Text("Bus fuel"), "category": models.Text("Transport"), "amount": models.Text("80.5")}},
		{ID: "e3", Values: models.Fields{"title": models.Text("Lab kits"), "category": models.Text("Science"), "amount": models.Text("1000"), "description": models.Text("shared with the office")}},
	}
}

func newListFixture(t *testing.T, cache *CacheService) (*ListService, *stubBackend, *stubPublisher) {
	t.Helper()
	backend := newStubBackend()
	backend.records["/expenses"] = expenseRecords()
	publisher := &stubPublisher{}
	validator, err := entity.NewValidator()
	require.NoError(t, err)
	svc := NewListService(entity.Default(), backend, cache, validator, publisher, nil, ListConfig{DefaultPageSize: 2}, zap.NewNop())
	return svc, backend, publisher
}

func rowIDs(rows []models.Row) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestListServiceSearchMatchesSearchableColumns(t *testing.T) {
	svc, _, _ := newListFixture(t, nil)

	rows, page, err := svc.List(context.Background(), "expense", models.ListQuery{Search: "  OFFICE ", PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e3"}, rowIDs(rows))
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "Stationery", rows[0].Values["title"])
	assert.Equal(t, "pens", rows[0].Values["description"])
}

func TestListServiceSortsNumericallyAndPaginates(t *testing.T) {
	svc, _, _ := newListFixture(t, nil)
	ctx := context.Background()

	rows, page, err := svc.List(ctx, "expense", models.ListQuery{Sort: "amount"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e1"}, rowIDs(rows))
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 2, TotalCount: 3}, page)

	rows, _, err = svc.List(ctx, "expense", models.ListQuery{Sort: "amount", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, rowIDs(rows))

	rows, _, err = svc.List(ctx, "expense", models.ListQuery{Sort: "amount", Order: "DESC", PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e1", "e2"}, rowIDs(rows))

	rows, _, err = svc.List(ctx, "expense", models.ListQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, _, err = svc.List(ctx, "expense", models.ListQuery{Sort: "colour"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestListServiceFilters(t *testing.T) {
	svc, _, _ := newListFixture(t, nil)

	rows, _, err := svc.List(context.Background(), "expense", models.ListQuery{Filters: map[string]string{"category": "transport"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, rowIDs(rows))

	_, _, err = svc.List(context.Background(), "unicorn", models.ListQuery{})
	assert.True(t, errors.Is(err, appErrors.ErrUnknownEntity))
}

func TestListServiceUsesCacheUntilInvalidated(t *testing.T) {
	store := newMemoryRecordCache()
	cache := NewCacheService(store, NewMetricsService(), time.Minute, zap.NewNop(), true)
	svc, backend, _ := newListFixture(t, cache)
	ctx := context.Background()

	_, _, err := svc.List(ctx, "expense", models.ListQuery{})
	require.NoError(t, err)
	_, _, err = svc.List(ctx, "expense", models.ListQuery{Search: "bus"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.fetchCalls)

	require.NoError(t, cache.HandleRecordEvent(ctx, events.Event{Topic: events.TopicRecordSaved, Entity: "expense"}))
	assert.Equal(t, []string{"expense"}, store.invalidated)

	_, _, err = svc.List(ctx, "expense", models.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.fetchCalls)
}

func TestListServiceExport(t *testing.T) {
	svc, _, _ := newListFixture(t, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	file, err := svc.Export(ctx, "expense", models.ListQuery{Sort: "title"}, "")
	require.NoError(t, err)
	assert.Equal(t, "expense-20260301-083000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Title,Category,Amount,Date", strings.TrimSpace(lines[0]))
	assert.True(t, strings.HasPrefix(lines[1], "Bus fuel,Transport,80.5"))

	file, err = svc.Export(ctx, "expense", models.ListQuery{}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))

	_, err = svc.Export(ctx, "expense", models.ListQuery{}, "xml")
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedExport))
}

func TestListServiceCreateValidatesAndPublishes(t *testing.T) {
	svc, backend, publisher := newListFixture(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "expense", models.Fields{"amount": models.Text("12")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "title is a required field")

	_, err = svc.Create(ctx, "expense", models.Fields{"title": models.Text("Chalk"), "amount": models.Text("12"), "colour": models.Text("red")})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, "expense", models.Fields{"title": models.File(models.FileRef{ID: "x"}), "amount": models.Text("12")})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, backend.created)

	row, err := svc.Create(ctx, "expense", models.Fields{"title": models.Text("Chalk"), "amount": models.Text("12")})
	require.NoError(t, err)
	assert.Equal(t, "new-1", row.ID)
	assert.Equal(t, "Chalk", row.Values["title"])
	require.Len(t, backend.created, 1)
	assert.Equal(t, "", backend.created[0].Get("category").Text)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.TopicRecordCreated, published[0].Topic)
	assert.Equal(t, "expense", published[0].Entity)
	assert.Equal(t, "new-1", published[0].RecordID)
}

func TestListServiceDeletePublishes(t *testing.T) {
	svc, backend, publisher := newListFixture(t, nil)

	require.NoError(t, svc.Delete(context.Background(), "expense", "e2"))
	assert.Equal(t, []string{"/expenses/e2"}, backend.deleted)
	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.TopicRecordDeleted, published[0].Topic)
	assert.Equal(t, "e2", published[0].RecordID)
}

func TestEntitiesDescribeRegistry(t *testing.T) {
	svc, _, _ := newListFixture(t, nil)
	infos := svc.Entities()
	require.NotEmpty(t, infos)
	assert.Equal(t, "student", infos[0].Name)
	assert.Contains(t, infos[0].FileFields, "photo")
}

func TestListServiceWritesDropCachedListImmediately(t *testing.T) {
	store := newMemoryRecordCache()
	cache := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	svc, backend, _ := newListFixture(t, cache)
	ctx := context.Background()

	_, _, err := svc.List(ctx, "expense", models.ListQuery{PageSize: 10})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "expense", models.Fields{"title": models.Text("Chalk"), "amount": models.Text("12")})
	require.NoError(t, err)
	rows, _, err := svc.List(ctx, "expense", models.ListQuery{PageSize: 10})
	require.NoError(t, err)
	assert.Contains(t, rowIDs(rows), "new-1")
	assert.Equal(t, 2, backend.fetchCalls)

	require.NoError(t, svc.Delete(ctx, "expense", "e2"))
	assert.Equal(t, []string{"expense", "expense"}, store.invalidated)
	_, _, err = svc.List(ctx, "expense", models.ListQuery{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, backend.fetchCalls)
}
