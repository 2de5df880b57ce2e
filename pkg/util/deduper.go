package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper provides SetNX-based first-writer-wins claims, backing the queue's
// "job id already exists" semantics.
type Deduper struct {
	rdb *redis.Client
}

func NewDeduper(rdb *redis.Client) *Deduper {
	return &Deduper{rdb: rdb}
}

// AcquireOnce claims scope:id for the given TTL.
// Returns true on first claim, false on duplicate.
// If redis is unavailable the claim is allowed through; the database
// constraints downstream remain the source of truth.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, id string, ttl time.Duration) bool {
	key := fmt.Sprintf("dedup:%s:%s", scope, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release drops a claim, allowing the id to be acquired again. Used when the
// operation guarded by the claim failed before taking effect.
func (d *Deduper) Release(ctx context.Context, scope, id string) {
	key := fmt.Sprintf("dedup:%s:%s", scope, id)
	d.rdb.Del(ctx, key)
}
