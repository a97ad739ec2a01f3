package memory

import (
	"sync"

	"remindme-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.PlayerSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
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
	return session
}

func (s *SessionStore) Get(playerID string) (*app.PlayerSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[playerID]
	return session, ok
}

// Range calls fn for every session without holding the store lock.
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
	}
}
