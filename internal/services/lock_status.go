package services

import (
	"context"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/patrickmn/go-cache"
	"github.com/shiftfill/outreach/internal/events"
	"github.com/shiftfill/outreach/internal/lock"
	log "github.com/sirupsen/logrus"
)

type lockStatusReader interface {
	Status(ctx context.Context, openingID string) (lock.Status, error)
}

// LockStatusCache keeps recent lock lookups so coordinator dashboards polling the API do not hit the db.
type LockStatusCache struct {
	locks lockStatusReader
	cache *cache.Cache
}

func NewLockStatusCache(locks lockStatusReader, ttl time.Duration) *LockStatusCache {
	// go-cache treats a zero ttl as "never expire"
	if ttl <= 0 {
		ttl = time.Second
	}
	return &LockStatusCache{
		locks: locks,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *LockStatusCache) Status(ctx context.Context, openingID string) (lock.Status, error) {
	if cached, found := c.cache.Get(openingID); found {
		return cached.(lock.Status), nil
	}

	status, err := c.locks.Status(ctx, openingID)
	if err != nil {
		return lock.Status{}, err
	}

	c.cache.SetDefault(openingID, status)
	return status, nil
}

// Forget drops the cached status, e.g. after the engine released or took the lock itself.
func (c *LockStatusCache) Forget(openingID string) {
	c.cache.Delete(openingID)
	log.Debugf("lock status for opening %s evicted from cache", openingID)
}

// Subscribe evicts an opening whenever the engine takes or releases its lock.
func (c *LockStatusCache) Subscribe(bus EventBus.Bus) error {
	return bus.Subscribe(events.LockChangedTopic, func(e events.LockChanged) {
		c.Forget(e.OpeningID)
	})
}
