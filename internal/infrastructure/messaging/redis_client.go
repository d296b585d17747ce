package messaging

import (
	"context"

	cache "github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/redis"
)

// CacheRedisClient adapts the Redis cache client to the RedisClient
// interface used by RedisEventBus. The underlying connection is shared
// with the status cache, so the worker holds a single Redis pool.
type CacheRedisClient struct {
	cache *cache.Cache
}

// NewCacheRedisClient wraps an existing Redis cache client.
func NewCacheRedisClient(c *cache.Cache) *CacheRedisClient {
	return &CacheRedisClient{cache: c}
}

var _ RedisClient = (*CacheRedisClient)(nil)

// Publish publishes a raw message to a channel.
func (c *CacheRedisClient) Publish(ctx context.Context, channel string, message []byte) error {
	return c.cache.PublishRaw(ctx, channel, message)
}

// Subscribe subscribes to channels and forwards messages to a channel of
// RedisMessage. The goroutine exits when the context is canceled.
func (c *CacheRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	pubsub := c.cache.Subscribe(ctx, channels...)

	// Wait for the subscription to be confirmed before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the shared cache connection is closed by its owner.
func (c *CacheRedisClient) Close() error {
	return nil
}
