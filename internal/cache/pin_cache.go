package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PinIndex maps active join PINs to session ids. An entry is deleted the
// moment its session stops, independent of the session record itself.
type PinIndex interface {
	Set(ctx context.Context, pin, sessionID string) error
	Get(ctx context.Context, pin string) (string, error)
	Delete(ctx context.Context, pin string) error
}

type pinIndex struct {
	client *redis.Client
}

// NewPinIndex creates a Redis-backed PIN index.
func NewPinIndex(client *redis.Client) PinIndex {
	return &pinIndex{
		client: client,
	}
}

func (c *pinIndex) key(pin string) string {
	return "pin:" + pin
}

func (c *pinIndex) Set(ctx context.Context, pin, sessionID string) error {
	// TTL matches the maximum session age; the registry's expiry sweep
	// stops the session well before this fires.
	return c.client.Set(ctx, c.key(pin), sessionID, 24*time.Hour).Err()
}

func (c *pinIndex) Get(ctx context.Context, pin string) (string, error) {
	id, err := c.client.Get(ctx, c.key(pin)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (c *pinIndex) Delete(ctx context.Context, pin string) error {
	return c.client.Del(ctx, c.key(pin)).Err()
}
