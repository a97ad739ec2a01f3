package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"remindme-service/internal/domain"
)

// NotificationQueue is an in-memory app.NotificationQueue keyed by notification ID.
type NotificationQueue struct {
	mu      sync.Mutex
	pending map[string]domain.Notification
}

func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{pending: make(map[string]domain.Notification)}
}

// Schedule adds n, replacing any pending notification with the same ID.
func (q *NotificationQueue) Schedule(_ context.Context, n domain.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[n.ID] = n
	return nil
}

func (q *NotificationQueue) Cancel(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, id)
	return nil
}

func (q *NotificationQueue) Scheduled(_ context.Context) ([]domain.Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Notification, 0, len(q.pending))
	for _, n := range q.pending {
		out = append(out, n)
	}
	sortByFireTime(out)
	return out, nil
}

func (q *NotificationQueue) Due(_ context.Context, now time.Time) ([]domain.Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []domain.Notification
	for id, n := range q.pending {
		if !n.FireAt.After(now) {
			due = append(due, n)
			delete(q.pending, id)
		}
	}
	sortByFireTime(due)
	return due, nil
}

func sortByFireTime(ns []domain.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if !ns[i].FireAt.Equal(ns[j].FireAt) {
			return ns[i].FireAt.Before(ns[j].FireAt)
		}
		return ns[i].ID < ns[j].ID
	})
}
