package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

const sessionKeyPrefix = "console:session:"

// MemorySessionStore keeps edit sessions in process memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	locks    map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

type memorySession struct {
	session   models.EditSession
	expiresAt time.Time
}

// NewMemorySessionStore constructs an in-memory store. A zero ttl keeps
// sessions until they are deleted.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		locks:    make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Save stores the session and refreshes its expiry.
func (s *MemorySessionStore) Save(ctx context.Context, session models.EditSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memorySession{session: session}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.sessions[session.ID] = entry
	return nil
}

// Get returns the session or SESSION_NOT_FOUND when missing or expired.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*models.EditSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.ErrSessionNotFound
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, appErrors.ErrSessionNotFound
	}
	session := entry.session
	return &session, nil
}

// Delete removes the session.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.locks, id)
	return nil
}

// Lock claims the session for one mutating request. It fails fast with
// SESSION_BUSY while another holder's lock is live.
func (s *MemorySessionStore) Lock(ctx context.Context, id string, ttl time.Duration) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if until, held := s.locks[id]; held && (until.IsZero() || now.Before(until)) {
		return nil, appErrors.ErrSessionBusy
	}
	until := time.Time{}
	if ttl > 0 {
		until = now.Add(ttl)
	}
	s.locks[id] = until
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if current, ok := s.locks[id]; ok && current.Equal(until) {
				delete(s.locks, id)
			}
		})
	}, nil
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisSessionStore keeps edit sessions in Redis so several console
// instances can serve the same session.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSessionStore constructs a Redis-backed store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionStore{client: client, ttl: ttl, logger: logger}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func sessionLockKey(id string) string {
	return sessionKeyPrefix + id + ":lock"
}

// Save serialises the session with the configured TTL.
func (s *RedisSessionStore) Save(ctx context.Context, session models.EditSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", session.ID, err)
	}
	return nil
}

// Get loads the session or returns SESSION_NOT_FOUND.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*models.EditSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}
	var session models.EditSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &session, nil
}

// Delete removes the session and any lock on it.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id), sessionLockKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}

// Lock claims the session with SET NX. The returned release is safe to call
// after the lock has expired.
func (s *RedisSessionStore) Lock(ctx context.Context, id string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, sessionLockKey(id), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock session %s: %w", id, err)
	}
	if !ok {
		return nil, appErrors.ErrSessionBusy
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, s.client, []string{sessionLockKey(id)}, token).Err(); err != nil && err != redis.Nil {
			s.logger.Warn("failed to release session lock", zap.String("session_id", id), zap.Error(err))
		}
	}, nil
}
