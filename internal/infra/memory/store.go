package memory

import (
	"context"
	"sort"
	"sync"

	"remindme-service/internal/domain"
)

// Store keeps people, reminders and settings in process memory. It backs
// demos and tests; data is lost on restart.
type Store struct {
	mu        sync.RWMutex
	people    map[string]domain.Person
	reminders map[string]domain.Reminder
	settings  map[string]string
}

func NewStore() *Store {
	return &Store{
		people:    make(map[string]domain.Person),
		reminders: make(map[string]domain.Reminder),
		settings:  make(map[string]string),
	}
}

func (s *Store) ListPeople(_ context.Context) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Person, 0, len(s.people))
	for _, p := range s.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetPerson(_ context.Context, id string) (domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok {
		return domain.Person{}, domain.ErrPersonNotFound
	}
	return p, nil
}

func (s *Store) AddPerson(_ context.Context, p domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p
	return nil
}

func (s *Store) DeletePerson(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.people[id]; !ok {
		return domain.ErrPersonNotFound
	}
	delete(s.people, id)
	return nil
}

func (s *Store) DeleteAllPeople(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.people)
	return nil
}

// ListReminders joins person name and photo at read time, so deleted
// people leave those fields empty.
func (s *Store) ListReminders(_ context.Context) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		r.PersonName, r.PersonPhoto = nil, nil
		if r.PersonID != nil {
			if p, ok := s.people[*r.PersonID]; ok {
				name := p.Name
				r.PersonName = &name
				r.PersonPhoto = p.PhotoURI
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) AddReminder(_ context.Context, r domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return nil
}

func (s *Store) DeleteReminder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return domain.ErrReminderNotFound
	}
	delete(s.reminders, id)
	return nil
}

func (s *Store) ReminderExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reminders[id]
	return ok, nil
}

func (s *Store) DeleteAllReminders(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.reminders)
	return nil
}

func (s *Store) ReadSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) WriteSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) ClearSettings(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.settings)
	return nil
}

func (s *Store) Close() error { return nil }
