package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/entity"
	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
	"github.com/noah-isme/sma-admin-console/pkg/export"
	"github.com/noah-isme/sma-admin-console/pkg/middleware/requestid"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type entityValidator interface {
	Validate(e models.Entity) error
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ListConfig tunes paging.
type ListConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ExportFile is a rendered list export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ListService implements the generic record list view shared by every entity.
type ListService struct {
	registry  *entity.Registry
	backend   RecordBackend
	cache     *CacheService
	validator entityValidator
	events    EventPublisher
	csv       datasetRenderer
	pdf       datasetRenderer
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ListConfig
	now       func() time.Time
}

// NewListService constructs the list service. cache and publisher may be nil.
func NewListService(registry *entity.Registry, backend RecordBackend, cache *CacheService, validator entityValidator, publisher EventPublisher, metrics *MetricsService, cfg ListConfig, logger *zap.Logger) *ListService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 200
	}
	return &ListService{
		registry:  registry,
		backend:   backend,
		cache:     cache,
		validator: validator,
		events:    publisher,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Entities describes every registered entity.
func (s *ListService) Entities() []models.EntityInfo {
	all := s.registry.All()
	out := make([]models.EntityInfo, 0, len(all))
	for _, d := range all {
		out = append(out, d.Info())
	}
	return out
}

// Describe returns the public description of one entity.
func (s *ListService) Describe(entityName string) (models.EntityInfo, error) {
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return models.EntityInfo{}, err
	}
	return desc.Info(), nil
}

// List returns one page of filtered, sorted rows projected to the entity's columns.
func (s *ListService) List(ctx context.Context, entityName string, query models.ListQuery) ([]models.Row, *models.Pagination, error) {
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.rows(ctx, desc, query)
	if err != nil {
		return nil, nil, err
	}

	page, size := s.normalizePaging(query)
	total := len(rows)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return rows[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Export renders every filtered row (unpaged) as CSV or PDF.
func (s *ListService) Export(ctx context.Context, entityName string, query models.ListQuery, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedExport, fmt.Sprintf("unsupported export format: %s", format))
	}
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, desc, query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Title: desc.Title, Columns: make([]export.Column, 0, len(desc.Columns))}
	for _, c := range desc.Columns {
		dataset.Columns = append(dataset.Columns, export.Column{Key: c.Key, Title: c.Title})
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, row.Values)
	}

	filename := fmt.Sprintf("%s-%s.%s", desc.Name, s.now().UTC().Format("20060102-150405"), format)
	var data []byte
	var contentType string
	switch format {
	case ExportFormatPDF:
		data, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render export")
	}
	return &ExportFile{Filename: filename, ContentType: contentType, Data: data}, nil
}

// Create validates the fields against the typed entity and posts them.
func (s *ListService) Create(ctx context.Context, entityName string, fields models.Fields) (*models.Row, error) {
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return nil, err
	}
	for key := range fields {
		if !desc.HasField(key) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field: %s", key))
		}
		if fields[key].IsFile() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "files can only be attached through an edit session")
		}
	}
	typed, err := desc.Decode(models.Record{Values: fields})
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "")
	}
	if s.validator != nil {
		if err := s.validator.Validate(typed); err != nil {
			return nil, err
		}
	}

	rec, err := s.backend.Create(ctx, desc.Path, typed.Fields())
	if err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, desc.Name)
	s.publish(ctx, events.Event{Topic: events.TopicRecordCreated, Entity: desc.Name, RecordID: rec.ID, Payload: rec})
	row := project(desc, rec)
	return &row, nil
}

// Delete removes a record.
func (s *ListService) Delete(ctx context.Context, entityName, id string) error {
	desc, err := s.registry.Lookup(entityName)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, desc.Path, id); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, desc.Name)
	s.publish(ctx, events.Event{Topic: events.TopicRecordDeleted, Entity: desc.Name, RecordID: id})
	return nil
}

func (s *ListService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.RequestID = requestid.FromContext(ctx)
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("topic", event.Topic), zap.String("entity", event.Entity), zap.Error(err))
		return
	}
	s.metrics.ObserveEvent(event.Topic)
}

func (s *ListService) fetch(ctx context.Context, desc entity.Descriptor) ([]models.Record, error) {
	if records, ok := s.cache.Records(ctx, desc.Name); ok {
		return records, nil
	}
	records, err := s.backend.FetchAll(ctx, desc.Path)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, desc.Name, records)
	return records, nil
}

func (s *ListService) rows(ctx context.Context, desc entity.Descriptor, query models.ListQuery) ([]models.Row, error) {
	for key := range query.Filters {
		if !desc.HasField(key) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot filter by %s", key))
		}
	}
	if query.Sort != "" && !desc.HasField(query.Sort) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot sort by %s", query.Sort))
	}
	records, err := s.fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(query.Search))
	searchKeys := desc.SearchKeys()

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		if !matchesFilters(rec, query.Filters) {
			continue
		}
		if search != "" && !matchesSearch(rec, searchKeys, search) {
			continue
		}
		rows = append(rows, project(desc, rec))
	}

	if query.Sort != "" {
		descending := strings.EqualFold(query.Order, "desc")
		key := query.Sort
		sort.SliceStable(rows, func(i, j int) bool {
			cmp := compareValues(rows[i].Values[key], rows[j].Values[key])
			if descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	return rows, nil
}

func (s *ListService) normalizePaging(query models.ListQuery) (int, int) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	return page, size
}

// project renders every editable field of the record; the UI picks columns.
func project(desc entity.Descriptor, rec models.Record) models.Row {
	values := make(map[string]string, len(desc.Columns))
	for _, key := range desc.FieldKeys() {
		values[key] = rec.Values.Get(key).String()
	}
	return models.Row{ID: rec.ID, Values: values}
}

func matchesFilters(rec models.Record, filters map[string]string) bool {
	for key, want := range filters {
		if !strings.EqualFold(strings.TrimSpace(rec.Values.Get(key).String()), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}

func matchesSearch(rec models.Record, keys []string, needle string) bool {
	for _, key := range keys {
		if strings.Contains(strings.ToLower(rec.Values.Get(key).String()), needle) {
			return true
		}
	}
	return false
}

// compareValues orders numerically when both sides are numbers, otherwise
// case-insensitively as text.
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
