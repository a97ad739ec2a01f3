package redis

import (
	"context"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"remindme-service/internal/domain"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type countingLoader struct {
	mu     sync.Mutex
	people []domain.Person
	calls  int
}

func (l *countingLoader) ListPeople(context.Context) ([]domain.Person, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	out := make([]domain.Person, len(l.people))
	copy(out, l.people)
	return out, nil
}

func (l *countingLoader) set(people ...domain.Person) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.people = people
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
