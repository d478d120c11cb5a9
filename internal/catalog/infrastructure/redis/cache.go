package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/dmehra2102/inventory-hub/internal/catalog/application"
	"github.com/dmehra2102/inventory-hub/internal/catalog/domain"
)

const (
	// tombstone marks an invalidated entry. Fills only write into an empty
	// key, so a load that raced an invalidation cannot put stale data back.
	tombstone    = "-"
	TombstoneTTL = 30 * time.Second
)

// Cache is a read-through product cache. Concurrent misses for one id share a single load.
type Cache struct {
	log          *slog.Logger
	rdb          *redis.Client
	ttl          time.Duration
	tombstoneTTL time.Duration
	group        singleflight.Group
}

func NewCache(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{log: log, rdb: rdb, ttl: ttl, tombstoneTTL: TombstoneTTL}
}

func (c *Cache) Key(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *Cache) Get(ctx context.Context, id string, load application.LoadFunc) (domain.Product, error) {
	raw, err := c.rdb.Get(ctx, c.Key(id)).Bytes()
	switch {
	case err == nil && string(raw) == tombstone:
	case err == nil:
		var p domain.Product
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
		c.log.Warn("dropping corrupt product cache entry", "product_id", id)
	case !errors.Is(err, redis.Nil):
		// redis is an accelerator only; fall through to the repository
		c.log.Warn("product cache read failed", "product_id", id, "err", err)
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		p, err := load(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		if raw, err := json.Marshal(p); err == nil {
			if err := c.rdb.SetNX(ctx, c.Key(id), raw, c.ttl).Err(); err != nil {
				c.log.Warn("product cache write failed", "product_id", id, "err", err)
			}
		}
		return p, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

// Invalidate replaces the entry with a short-lived tombstone. Reads treat it
// as a miss; fills are refused until it expires.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Set(ctx, c.Key(id), tombstone, c.tombstoneTTL).Err()
}
