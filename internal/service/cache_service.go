package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/events"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

// RecordCache abstracts persistence for cached record lists.
type RecordCache interface {
	Load(ctx context.Context, entity string) ([]models.Record, error)
	Store(ctx context.Context, entity string, records []models.Record, ttl time.Duration) error
	Invalidate(ctx context.Context, entity string) error
}

// CacheService fronts the list cache with metrics. Writes through this
// instance drop the entity's list before returning; the event subscriber
// catches writes made through other instances.
type CacheService struct {
	repo    RecordCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo RecordCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Records returns the cached list and whether it was a hit. Cache failures
// are logged and reported as misses.
func (s *CacheService) Records(ctx context.Context, entity string) ([]models.Record, bool) {
	if !s.Enabled() {
		return nil, false
	}
	start := time.Now()
	records, err := s.repo.Load(ctx, entity)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("entity", entity), zap.Error(err))
		}
		return nil, false
	}
	return records, true
}

// Put stores a freshly fetched list.
func (s *CacheService) Put(ctx context.Context, entity string, records []models.Record) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Store(ctx, entity, records, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("entity", entity), zap.Error(err))
	}
}

// Invalidate drops the cached list of entity.
func (s *CacheService) Invalidate(ctx context.Context, entity string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Invalidate(ctx, entity); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("entity", entity), zap.Error(err))
		return err
	}
	return nil
}

// HandleRecordEvent is the event-bus subscriber that drops the affected list.
func (s *CacheService) HandleRecordEvent(ctx context.Context, event events.Event) error {
	return s.Invalidate(ctx, event.Entity)
}
