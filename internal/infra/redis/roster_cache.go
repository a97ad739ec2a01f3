package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"remindme-service/internal/domain"
)

const (
	rosterKey           = "remindme:roster"
	rosterGenerationKey = "remindme:roster:gen"
)

// PeopleLoader fetches the people list from the system of record.
type PeopleLoader interface {
	ListPeople(ctx context.Context) ([]domain.Person, error)
}

// RosterCache keeps the roster snapshot in Redis as one JSON document so
// every instance shares the same cached version, and falls back to a
// loader on cache miss.
//
// Invalidate bumps a generation counter; a load that started before the
// bump never writes its (stale) result back.
type RosterCache struct {
	client *redis.Client
	loader PeopleLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewRosterCache(client *redis.Client, loader PeopleLoader, ttl time.Duration) *RosterCache {
	return &RosterCache{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (c *RosterCache) Roster(ctx context.Context) (domain.RosterSnapshot, error) {
	if snap, ok := c.cached(ctx); ok {
		return snap, nil
	}

	result, err, _ := c.sf.Do(rosterKey, func() (interface{}, error) {
		// another caller may have filled the cache while we waited
		if snap, ok := c.cached(ctx); ok {
			return snap, nil
		}

		gen, err := c.generation(ctx)
		if err != nil {
			return domain.RosterSnapshot{}, fmt.Errorf("%w: %w", domain.ErrRosterUnavailable, err)
		}

		people, err := c.loader.ListPeople(ctx)
		if err != nil {
			return domain.RosterSnapshot{}, fmt.Errorf("%w: %w", domain.ErrRosterUnavailable, err)
		}
		snap := domain.NewRosterSnapshot(people)

		if ttl := c.ttlWithJitter(); ttl > 0 {
			// best-effort; a failed write only costs another load
			_ = c.store(ctx, gen, snap, ttl)
		}
		return snap, nil
	})
	if err != nil {
		return domain.RosterSnapshot{}, err
	}
	return result.(domain.RosterSnapshot), nil
}

// Invalidate drops the cached snapshot so the next read hits the loader.
func (c *RosterCache) Invalidate(ctx context.Context) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, rosterGenerationKey)
	pipe.Del(ctx, rosterKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate roster cache: %w", err)
	}
	c.sf.Forget(rosterKey)
	return nil
}

func (c *RosterCache) cached(ctx context.Context) (domain.RosterSnapshot, bool) {
	raw, err := c.client.Get(ctx, rosterKey).Bytes()
	if err != nil {
		return domain.RosterSnapshot{}, false
	}
	var snap domain.RosterSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.RosterSnapshot{}, false
	}
	return snap, true
}

func (c *RosterCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, rosterGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// store writes snap only if the generation is still gen.
func (c *RosterCache) store(ctx context.Context, gen int64, snap domain.RosterSnapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rosterGenerationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rosterKey, payload, ttl)
			return nil
		})
		return err
	}, rosterGenerationKey)
}

func (c *RosterCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
