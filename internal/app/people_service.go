package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindme-service/internal/domain"
)

// PeopleService manages the roster and announces every change to it.
type PeopleService struct {
	repo     PeopleRepository
	roster   RosterSource
	cache    RosterInvalidator
	notifier RosterNotifier
	now      func() time.Time
	log      *slog.Logger
}

func NewPeopleService(repo PeopleRepository, roster RosterSource, cache RosterInvalidator, notifier RosterNotifier, logger *slog.Logger) *PeopleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeopleService{
		repo:     repo,
		roster:   roster,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
		log:      logger,
	}
}

func (s *PeopleService) List(ctx context.Context) ([]domain.Person, error) {
	people, err := s.repo.ListPeople(ctx)
	if err != nil {
		s.log.Error("list people", "err", err)
		return nil, err
	}
	return people, nil
}

// Add validates and stores a new person. Blank optional fields are stored as empty strings.
func (s *PeopleService) Add(ctx context.Context, in domain.NewPersonInput) (domain.Person, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Person{}, fmt.Errorf("%w: name is required", domain.ErrInvalidPerson)
	}

	p := domain.Person{
		ID:        uuid.NewString(),
		Name:      name,
		Relation:  trimmedOrEmpty(in.Relation),
		Notes:     trimmedOrEmpty(in.Notes),
		PhotoURI:  nonBlank(in.PhotoURI),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AddPerson(ctx, p); err != nil {
		s.log.Error("add person", "name", name, "err", err)
		return domain.Person{}, err
	}
	s.log.Info("added person", "id", p.ID, "name", p.Name)
	s.rosterChanged(ctx)
	return p, nil
}

func (s *PeopleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeletePerson(ctx, id); err != nil {
		s.log.Error("delete person", "id", id, "err", err)
		return err
	}
	s.log.Info("deleted person", "id", id)
	s.rosterChanged(ctx)
	return nil
}

func (s *PeopleService) DeleteAll(ctx context.Context) error {
	if err := s.repo.DeleteAllPeople(ctx); err != nil {
		s.log.Error("delete all people", "err", err)
		return err
	}
	s.rosterChanged(ctx)
	return nil
}

// rosterChanged is best effort: the write already succeeded, so failures
// here are logged rather than returned.
func (s *PeopleService) rosterChanged(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn("invalidate roster cache", "err", err)
		}
	}
	if s.notifier == nil || s.roster == nil {
		return
	}
	snapshot, err := s.roster.Roster(ctx)
	if err != nil {
		s.log.Warn("reload roster after change", "err", err)
		return
	}
	if err := s.notifier.Publish(ctx, snapshot.Version); err != nil {
		s.log.Warn("publish roster change", "version", snapshot.Version, "err", err)
	}
}

// trimmedOrEmpty stores absent values as "" like the mobile app did.
func trimmedOrEmpty(s *string) *string {
	v := ""
	if s != nil {
		v = strings.TrimSpace(*s)
	}
	return &v
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
