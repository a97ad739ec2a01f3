package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"remindme-service/internal/domain"
)

// NotificationQueue persists scheduled notifications in Redis:
//
//	ZADD remindme:notifications {fireAtMillis} {id}
//	HSET remindme:notifications:payload {id} {json}
type NotificationQueue struct {
	client *redis.Client
}

const (
	notificationsKey       = "remindme:notifications"
	notificationPayloadKey = "remindme:notifications:payload"
)

func NewNotificationQueue(client *redis.Client) *NotificationQueue {
	return &NotificationQueue{client: client}
}

// Schedule adds n, replacing any pending notification with the same ID.
func (q *NotificationQueue) Schedule(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, notificationsKey, redis.Z{Score: float64(n.FireAt.UnixMilli()), Member: n.ID})
	pipe.HSet(ctx, notificationPayloadKey, n.ID, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule notification %s: %w", n.ID, err)
	}
	return nil
}

func (q *NotificationQueue) Cancel(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, notificationsKey, id)
	pipe.HDel(ctx, notificationPayloadKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cancel notification %s: %w", id, err)
	}
	return nil
}

// Scheduled lists pending notifications ordered by fire time.
func (q *NotificationQueue) Scheduled(ctx context.Context) ([]domain.Notification, error) {
	ids, err := q.client.ZRange(ctx, notificationsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return q.load(ctx, ids)
}

// Due removes and returns every notification with FireAt at or before now.
// ZREM decides ownership so two instances never deliver the same entry.
func (q *NotificationQueue) Due(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	ids, err := q.client.ZRangeByScore(ctx, notificationsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}

	claimed := make([]string, 0, len(ids))
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, notificationsKey, id).Result()
		if err != nil {
			return nil, fmt.Errorf("claim notification %s: %w", id, err)
		}
		if removed == 1 {
			claimed = append(claimed, id)
		}
	}

	due, err := q.load(ctx, claimed)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		if err := q.client.HDel(ctx, notificationPayloadKey, claimed...).Err(); err != nil {
			return due, fmt.Errorf("drop delivered payloads: %w", err)
		}
	}
	return due, nil
}

func (q *NotificationQueue) load(ctx context.Context, ids []string) ([]domain.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := q.client.HMGet(ctx, notificationPayloadKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var n domain.Notification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", ids[i], err)
		}
		out = append(out, n)
	}
	return out, nil
}
