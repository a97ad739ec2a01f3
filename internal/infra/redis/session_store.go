package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"remindme-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions and their subscribers live in process; Redis only carries a
// liveness marker per player so operators can see who has a quiz open.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.PlayerSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.PlayerSession),
	}
}

func (s *SessionStore) GetOrCreate(playerID string) *app.PlayerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[playerID]; ok {
		return session
	}
	session := app.NewPlayerSession(playerID)
	s.sessions[playerID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(playerID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(playerID string) (*app.PlayerSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[playerID]
	return session, ok
}

func (s *SessionStore) Range(fn func(*app.PlayerSession)) {
	s.mu.RLock()
	sessions := make([]*app.PlayerSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		fn(session)
	}
}

func (s *SessionStore) DeleteIfIdle(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[playerID]
	if !ok {
		return
	}
	if session.IsIdle() {
		delete(s.sessions, playerID)
		_ = s.client.Del(context.Background(), s.key(playerID)).Err()
	}
}

func (s *SessionStore) key(playerID string) string {
	return "remindme:session:" + playerID
}
