package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

const recordCachePrefix = "console:records:"

// RecordCacheRepository caches whole backend record lists per entity in Redis.
type RecordCacheRepository struct {
	client *redis.Client
}

// NewRecordCacheRepository constructs a cache repository. A nil client always misses.
func NewRecordCacheRepository(client *redis.Client) *RecordCacheRepository {
	return &RecordCacheRepository{client: client}
}

func recordCacheKey(entity string) string {
	return recordCachePrefix + entity
}

// Load returns the cached list or ErrCacheMiss.
func (r *RecordCacheRepository) Load(ctx context.Context, entity string) ([]models.Record, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, recordCacheKey(entity)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", entity, err)
	}
	var records []models.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unmarshal cached %s: %w", entity, err)
	}
	return records, nil
}

// Store replaces the cached list.
func (r *RecordCacheRepository) Store(ctx context.Context, entity string, records []models.Record, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal cached %s: %w", entity, err)
	}
	if err := r.client.Set(ctx, recordCacheKey(entity), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entity, err)
	}
	return nil
}

// Invalidate drops the cached list for entity.
func (r *RecordCacheRepository) Invalidate(ctx context.Context, entity string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, recordCacheKey(entity)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", entity, err)
	}
	return nil
}
