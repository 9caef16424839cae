package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResolutionStore keeps the document resolved for each call. Writes are
// set-once: the first resolution for a call id wins for the life of that call.
type ResolutionStore interface {
	// Get returns the resolution for callID, or nil when none exists.
	Get(ctx context.Context, callID string) (*Resolution, error)
	// SetOnce stores res unless a resolution already exists, and returns the
	// resolution that is in effect afterwards.
	SetOnce(ctx context.Context, res Resolution) (*Resolution, error)
	// Delete forgets the resolution for callID.
	Delete(ctx context.Context, callID string) error
}

// MemoryResolutionStore is a process-local ResolutionStore.
type MemoryResolutionStore struct {
	mu   sync.Mutex
	byID map[string]Resolution
}

// NewMemoryResolutionStore creates an empty in-memory store.
func NewMemoryResolutionStore() *MemoryResolutionStore {
	return &MemoryResolutionStore{byID: make(map[string]Resolution)}
}

func (s *MemoryResolutionStore) Get(_ context.Context, callID string) (*Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.byID[callID]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (s *MemoryResolutionStore) SetOnce(_ context.Context, res Resolution) (*Resolution, error) {
	if res.CallID == "" || res.DocumentID == "" {
		return nil, errors.New("extraction: resolution requires call id and document id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byID[res.CallID]; ok {
		return &existing, nil
	}
	s.byID[res.CallID] = res
	return &res, nil
}

func (s *MemoryResolutionStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, callID)
	return nil
}

const (
	resolutionKeyPrefix  = "extraction:resolution:"
	defaultResolutionTTL = 6 * time.Hour
)

// RedisResolutionStore shares resolutions between processes watching the same
// call (CLI, dashboards) using SETNX.
type RedisResolutionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisResolutionStore creates a Redis-backed store. ttl <= 0 uses six hours,
// comfortably longer than a voice session.
func NewRedisResolutionStore(rdb *redis.Client, ttl time.Duration) *RedisResolutionStore {
	if ttl <= 0 {
		ttl = defaultResolutionTTL
	}
	return &RedisResolutionStore{rdb: rdb, ttl: ttl}
}

func resolutionKey(callID string) string {
	return resolutionKeyPrefix + callID
}

func (s *RedisResolutionStore) Get(ctx context.Context, callID string) (*Resolution, error) {
	data, err := s.rdb.Get(ctx, resolutionKey(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("extraction resolution: get: %w", err)
	}
	var res Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("extraction resolution: unmarshal: %w", err)
	}
	return &res, nil
}

func (s *RedisResolutionStore) SetOnce(ctx context.Context, res Resolution) (*Resolution, error) {
	if res.CallID == "" || res.DocumentID == "" {
		return nil, errors.New("extraction: resolution requires call id and document id")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("extraction resolution: marshal: %w", err)
	}
	set, err := s.rdb.SetNX(ctx, resolutionKey(res.CallID), data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("extraction resolution: setnx: %w", err)
	}
	if set {
		return &res, nil
	}
	existing, err := s.Get(ctx, res.CallID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// expired between SETNX and GET; ours is as good as any
		return &res, nil
	}
	return existing, nil
}

func (s *RedisResolutionStore) Delete(ctx context.Context, callID string) error {
	if err := s.rdb.Del(ctx, resolutionKey(callID)).Err(); err != nil {
		return fmt.Errorf("extraction resolution: delete: %w", err)
	}
	return nil
}
