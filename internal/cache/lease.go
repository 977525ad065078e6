package cache

import (
	"context"
	"time"
)

// Lease is a best-effort distributed lock over redis SetNX, used to keep
// one sync drain per tenant across worker processes.
type Lease struct {
	cache *Cache
}

func NewLease(c *Cache) *Lease {
	return &Lease{cache: c}
}

func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.cache.SetNX(ctx, "lease:"+key, 1, ttl)
}

func (l *Lease) Release(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, "lease:"+key)
}
