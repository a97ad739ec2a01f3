package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"remindme-service/internal/domain"
	"remindme-service/internal/quiz"
)

// SessionRepository abstracts where per-player quiz sessions live (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(playerID string) *PlayerSession
	Get(playerID string) (*PlayerSession, bool)
	Range(fn func(*PlayerSession))
	DeleteIfIdle(playerID string)
}

// RosterSource supplies roster snapshots. Fetch failures are reported as
// domain.ErrRosterUnavailable.
type RosterSource interface {
	Roster(ctx context.Context) (domain.RosterSnapshot, error)
}

// RosterNotifier fans out roster version changes.
type RosterNotifier interface {
	Publish(ctx context.Context, version string) error
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// QuizService runs memory-test quizzes, one session per player.
//
// Roster versions are content hashes and carry no order, so the latest
// version is whatever the most recently started fetch returned. Fetches are
// numbered before they run and a result older than the one already applied
// is ignored.
type QuizService struct {
	sessions SessionRepository
	roster   RosterSource
	engine   *quiz.Engine
	log      *slog.Logger

	fetchSeq atomic.Uint64

	applyMu sync.Mutex // serializes version changes and the sweeps they trigger

	mu            sync.RWMutex
	appliedSeq    uint64
	latestVersion string
}

func NewQuizService(store SessionRepository, roster RosterSource, engine *quiz.Engine, logger *slog.Logger) *QuizService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{sessions: store, roster: roster, engine: engine, log: logger}
}

// NewPlayerSession is exported for infrastructure layers that need to seed sessions.
func NewPlayerSession(playerID string) *PlayerSession {
	return newPlayerSessionWithClock(playerID, time.Now)
}

// NewPlayerSessionWithClock is test-only for deterministic timestamps.
func NewPlayerSessionWithClock(playerID string, now func() time.Time) *PlayerSession {
	return newPlayerSessionWithClock(playerID, now)
}

// Start fetches the roster and begins a fresh quiz, replacing any existing one.
func (s *QuizService) Start(ctx context.Context, playerID string) (quiz.View, error) {
	roster, err := s.fetchRoster(ctx)
	if err != nil {
		s.log.Error("fetch roster", "player", playerID, "err", err)
		return quiz.View{}, err
	}
	session := s.sessions.GetOrCreate(playerID)
	return session.apply(s.engine.View, func(quiz.Session) (quiz.Session, error) {
		return s.engine.Start(roster)
	})
}

// Answer submits a choice for the active question. Answers outside a
// running quiz leave the session untouched.
func (s *QuizService) Answer(_ context.Context, playerID, choice string) (quiz.View, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return s.engine.View(quiz.Session{}), nil
	}
	latest := s.latest()
	return session.apply(s.engine.View, func(cur quiz.Session) (quiz.Session, error) {
		if latest != "" {
			cur = s.engine.Observe(cur, latest)
		}
		return s.engine.Answer(cur, choice), nil
	})
}

// Restart begins a new quiz with the current roster. On failure the
// existing session is kept.
func (s *QuizService) Restart(ctx context.Context, playerID string) (quiz.View, error) {
	roster, err := s.fetchRoster(ctx)
	if err != nil {
		s.log.Error("fetch roster", "player", playerID, "err", err)
		return quiz.View{}, err
	}
	session := s.sessions.GetOrCreate(playerID)
	return session.apply(s.engine.View, func(cur quiz.Session) (quiz.Session, error) {
		return s.engine.Restart(cur, roster)
	})
}

// Close discards the player's session.
func (s *QuizService) Close(_ context.Context, playerID string) (quiz.View, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return s.engine.View(quiz.Session{}), nil
	}
	return session.apply(s.engine.View, func(cur quiz.Session) (quiz.Session, error) {
		return s.engine.Close(cur), nil
	})
}

// State returns the current view without changing anything.
func (s *QuizService) State(_ context.Context, playerID string) quiz.View {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return s.engine.View(quiz.Session{})
	}
	return s.engine.View(session.State())
}

// Refresh re-fetches the roster, as a client does when the quiz screen
// regains focus, and invalidates running sessions if it changed.
func (s *QuizService) Refresh(ctx context.Context, playerID string) (quiz.View, error) {
	if _, err := s.fetchRoster(ctx); err != nil {
		s.log.Error("refresh roster", "player", playerID, "err", err)
		return s.State(ctx, playerID), err
	}
	return s.State(ctx, playerID), nil
}

// RosterChanged handles a change notification. The announced version is
// only a hint: notifications can arrive out of order, so the roster is
// fetched again and the fetched version wins. A hint matching the current
// version needs no fetch.
func (s *QuizService) RosterChanged(ctx context.Context, hint string) error {
	if hint != "" && hint == s.latest() {
		return nil
	}
	if _, err := s.fetchRoster(ctx); err != nil {
		return fmt.Errorf("reload roster after change %q: %w", hint, err)
	}
	return nil
}

// fetchRoster loads the roster and records its version unless a fetch
// started later has already been applied.
func (s *QuizService) fetchRoster(ctx context.Context) (domain.RosterSnapshot, error) {
	seq := s.fetchSeq.Add(1)
	roster, err := s.roster.Roster(ctx)
	if err != nil {
		return roster, err
	}
	s.observeVersion(seq, roster.Version)
	return roster, nil
}

func (s *QuizService) observeVersion(seq uint64, version string) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if seq < s.appliedSeq {
		s.mu.Unlock()
		return
	}
	s.appliedSeq = seq
	changed := version != s.latestVersion
	s.latestVersion = version
	s.mu.Unlock()
	if !changed {
		return
	}

	s.sessions.Range(func(session *PlayerSession) {
		if session.State().Status != quiz.StatusRunning {
			return
		}
		view, _ := session.apply(s.engine.View, func(cur quiz.Session) (quiz.Session, error) {
			return s.engine.Observe(cur, version), nil
		})
		if view.Status == quiz.StatusIdle {
			s.log.Info("quiz invalidated by roster change", "player", session.PlayerID(), "version", version)
		}
	})
}

// WatchRoster applies roster notifications until ctx is done.
func (s *QuizService) WatchRoster(ctx context.Context, notifier RosterNotifier) error {
	versions, cancel, err := notifier.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case version, ok := <-versions:
			if !ok {
				return nil
			}
			if err := s.RosterChanged(ctx, version); err != nil {
				s.log.Error("apply roster change", "err", err)
			}
		}
	}
}

// Subscribe returns a channel that receives view updates for a player.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, playerID string) (<-chan quiz.View, func(), error) {
	session := s.sessions.GetOrCreate(playerID)
	ch, cancel := session.subscribe(s.engine.View)
	return ch, cancel, nil
}

// Leave drops the player's session once it is idle and unobserved.
func (s *QuizService) Leave(_ context.Context, playerID string) {
	s.sessions.DeleteIfIdle(playerID)
}

func (s *QuizService) latest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestVersion
}

// PlayerSession guards one player's quiz state and its subscribers.
type PlayerSession struct {
	playerID    string
	createdAt   time.Time
	now         func() time.Time
	mu          sync.RWMutex
	state       quiz.Session
	updatedAt   time.Time
	subscribers map[chan quiz.View]struct{}
}

func newPlayerSessionWithClock(playerID string, now func() time.Time) *PlayerSession {
	return &PlayerSession{
		playerID:    playerID,
		createdAt:   now(),
		updatedAt:   now(),
		now:         now,
		subscribers: make(map[chan quiz.View]struct{}),
	}
}

func (p *PlayerSession) PlayerID() string { return p.playerID }

// State returns a copy of the quiz state.
func (p *PlayerSession) State() quiz.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// UpdatedAt reports when the state last changed.
func (p *PlayerSession) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}

// IsIdle reports whether the session holds no quiz and nobody is watching it.
func (p *PlayerSession) IsIdle() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Status == quiz.StatusIdle && len(p.subscribers) == 0
}

// apply runs one transition under the lock. A failed transition keeps
// the previous state and broadcasts nothing.
func (p *PlayerSession) apply(render func(quiz.Session) quiz.View, fn func(quiz.Session) (quiz.Session, error)) (quiz.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := fn(p.state)
	if err != nil {
		return render(p.state), err
	}
	p.state = next
	p.updatedAt = p.now()
	view := render(next)
	p.broadcastLocked(view)
	return view, nil
}

func (p *PlayerSession) subscribe(render func(quiz.Session) quiz.View) (<-chan quiz.View, func()) {
	ch := make(chan quiz.View, 8)

	// the initial view goes in under the lock so no broadcast can overtake it
	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	ch <- render(p.state)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

func (p *PlayerSession) broadcastLocked(view quiz.View) {
	for ch := range p.subscribers {
		select {
		case ch <- view:
		default:
			// drop the oldest pending view so a slow reader never blocks transitions
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}
