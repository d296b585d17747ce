package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// StatusCache implements loyalty.StatusCache using the generic Redis Cache.
// Payloads are stored as opaque bytes; serialization belongs to the query
// layer so the cache never depends on projection shape.
type StatusCache struct {
	cache *Cache
}

// NewStatusCache creates a new StatusCache.
func NewStatusCache(cache *Cache) *StatusCache {
	return &StatusCache{
		cache: cache,
	}
}

var _ loyalty.StatusCache = (*StatusCache)(nil)

// GetStatus gets a serialized status projection from cache.
func (s *StatusCache) GetStatus(ctx context.Context, userID shared.UserID) ([]byte, error) {
	data, err := s.cache.GetBytes(ctx, StatusKey(userID.Int64()))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// SetStatus stores a serialized status projection with a TTL.
func (s *StatusCache) SetStatus(ctx context.Context, userID shared.UserID, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLStatusCache
	}
	return s.cache.SetBytes(ctx, StatusKey(userID.Int64()), payload, ttl)
}

// Invalidate removes a user's status projection from cache.
func (s *StatusCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	return s.cache.Delete(ctx, StatusKey(userID.Int64()))
}
