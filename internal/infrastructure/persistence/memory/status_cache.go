package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// StatusCache is an in-memory loyalty.StatusCache with TTL expiry.
// Used in tests and when Redis is disabled.
type StatusCache struct {
	mu      sync.RWMutex
	entries map[shared.UserID]statusEntry
}

type statusEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewStatusCache creates an empty in-memory status cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{
		entries: make(map[shared.UserID]statusEntry),
	}
}

var _ loyalty.StatusCache = (*StatusCache)(nil)

// GetStatus returns a cached payload or shared.ErrNotFound.
func (c *StatusCache) GetStatus(_ context.Context, userID shared.UserID) ([]byte, error) {
	c.mu.RLock()
	entry, exists := c.entries[userID]
	c.mu.RUnlock()

	if !exists || time.Now().After(entry.expiresAt) {
		return nil, shared.ErrNotFound
	}

	payload := make([]byte, len(entry.payload))
	copy(payload, entry.payload)
	return payload, nil
}

// SetStatus stores a payload with a TTL.
func (c *StatusCache) SetStatus(_ context.Context, userID shared.UserID, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	c.mu.Lock()
	c.entries[userID] = statusEntry{
		payload:   stored,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Invalidate removes a user's cached payload.
func (c *StatusCache) Invalidate(_ context.Context, userID shared.UserID) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}
