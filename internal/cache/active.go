package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/franzego/partnernotify/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	activeKey  = "partner_notifications:active"
	versionKey = "partner_notifications:active:version"
)

// ActiveCache keeps the current set of active notifications in redis.
type ActiveCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewActiveCache(client *redis.Client, ttl time.Duration) *ActiveCache {
	return &ActiveCache{redis: client, ttl: ttl}
}

// Get returns the cached set. ok is false on a miss.
func (c *ActiveCache) Get(ctx context.Context) (list []models.Notification, ok bool, err error) {
	raw, err := c.redis.Get(ctx, activeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get active notifications: %w", err)
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, fmt.Errorf("decode active notifications: %w", err)
	}
	return list, true, nil
}

// Version returns the invalidation counter. Read it before loading the set
// from the store and hand it back to Set.
func (c *ActiveCache) Version(ctx context.Context) (int64, error) {
	v, err := c.redis.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get active notifications version: %w", err)
	}
	return v, nil
}

// Set stores list only if no invalidation happened since version was read.
// stored is false when the set was already stale.
func (c *ActiveCache) Set(ctx context.Context, version int64, list []models.Notification) (stored bool, err error) {
	if list == nil {
		list = []models.Notification{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return false, err
	}

	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, activeKey, raw, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("set active notifications: %w", err)
	}
}

var errStale = errors.New("active notifications changed")

// Invalidate drops the cached set and bumps the version so that in-flight
// loads started before the write cannot store their result.
func (c *ActiveCache) Invalidate(ctx context.Context) error {
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Del(ctx, activeKey)
		return nil
	})
	return err
}

func (c *ActiveCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}
