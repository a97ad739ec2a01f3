package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"remindme-service/internal/domain"
)

// PeopleLoader fetches the people list from a backing store.
type PeopleLoader interface {
	ListPeople(ctx context.Context) ([]domain.Person, error)
}

const rosterFlightKey = "roster"

// RosterCache caches the roster snapshot with TTL to avoid repeated DB hits.
type RosterCache struct {
	loader PeopleLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	snapshot  domain.RosterSnapshot
	expiresAt time.Time
	valid     bool
	// generation guards against a slow load repopulating the cache after Invalidate.
	generation uint64
}

func NewRosterCache(loader PeopleLoader, ttl time.Duration) *RosterCache {
	return &RosterCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
	}
}

func (c *RosterCache) Roster(ctx context.Context) (domain.RosterSnapshot, error) {
	if snap, ok := c.cached(c.clock()); ok {
		return snap, nil
	}

	result, err, _ := c.sf.Do(rosterFlightKey, func() (interface{}, error) {
		now := c.clock()
		if snap, ok := c.cached(now); ok {
			return snap, nil
		}

		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		people, err := c.loader.ListPeople(ctx)
		if err != nil {
			return domain.RosterSnapshot{}, fmt.Errorf("%w: %w", domain.ErrRosterUnavailable, err)
		}
		snap := domain.NewRosterSnapshot(people)

		c.mu.Lock()
		if gen == c.generation && c.ttl > 0 {
			c.snapshot = snap
			c.expiresAt = now.Add(c.ttlWithJitter())
			c.valid = true
		}
		c.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return domain.RosterSnapshot{}, err
	}
	return result.(domain.RosterSnapshot), nil
}

// Invalidate drops the cached snapshot so the next read hits the loader.
func (c *RosterCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.valid = false
	c.generation++
	c.mu.Unlock()
	c.sf.Forget(rosterFlightKey)
	return nil
}

func (c *RosterCache) cached(now time.Time) (domain.RosterSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.valid && c.expiresAt.After(now) {
		return c.snapshot, true
	}
	return domain.RosterSnapshot{}, false
}

func (c *RosterCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
