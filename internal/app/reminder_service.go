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

const (
	defaultReminderIcon = "bell"
	dailyRepeat         = 24 * time.Hour
	scheduleTimeLayout  = "15:04"
)

// ReminderService manages reminders and their scheduled notifications.
type ReminderService struct {
	repo   ReminderRepository
	people PeopleRepository
	queue  NotificationQueue
	now    func() time.Time
	loc    *time.Location
	log    *slog.Logger
}

func NewReminderService(repo ReminderRepository, people PeopleRepository, queue NotificationQueue, loc *time.Location, logger *slog.Logger) *ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{repo: repo, people: people, queue: queue, now: time.Now, loc: loc, log: logger}
}

// NewReminderServiceWithClock is test-only for deterministic scheduling.
func NewReminderServiceWithClock(repo ReminderRepository, people PeopleRepository, queue NotificationQueue, loc *time.Location, now func() time.Time) *ReminderService {
	s := NewReminderService(repo, people, queue, loc, slog.Default())
	s.now = now
	return s
}

func (s *ReminderService) List(ctx context.Context) ([]domain.Reminder, error) {
	reminders, err := s.repo.ListReminders(ctx)
	if err != nil {
		s.log.Error("list reminders", "err", err)
		return nil, err
	}
	return reminders, nil
}

// Add stores a reminder and schedules one notification per daily time at
// its next occurrence.
func (s *ReminderService) Add(ctx context.Context, in domain.NewReminderInput) (domain.Reminder, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Reminder{}, fmt.Errorf("%w: title is required", domain.ErrInvalidReminder)
	}
	schedule, err := normalizeSchedule(in.Schedule)
	if err != nil {
		return domain.Reminder{}, err
	}

	r := domain.Reminder{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Icon:        strings.TrimSpace(in.Icon),
		Schedule:    schedule,
		CreatedAt:   s.now().UTC(),
	}
	if r.Icon == "" {
		r.Icon = defaultReminderIcon
	}
	if in.PersonID != nil && strings.TrimSpace(*in.PersonID) != "" {
		person, err := s.people.GetPerson(ctx, strings.TrimSpace(*in.PersonID))
		if err != nil {
			return domain.Reminder{}, err
		}
		r.PersonID = &person.ID
		r.PersonName = &person.Name
		r.PersonPhoto = person.PhotoURI
	}

	if err := s.repo.AddReminder(ctx, r); err != nil {
		s.log.Error("add reminder", "title", title, "err", err)
		return domain.Reminder{}, err
	}
	s.log.Info("added reminder", "id", r.ID, "title", r.Title)

	for _, n := range s.notificationsFor(r) {
		if err := s.queue.Schedule(ctx, n); err != nil {
			s.log.Error("schedule notification", "id", n.ID, "err", err)
			return r, fmt.Errorf("schedule notification %s: %w", n.ID, err)
		}
		s.log.Info("scheduled notification", "id", n.ID, "fireAt", n.FireAt)
	}
	return r, nil
}

func (s *ReminderService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteReminder(ctx, id); err != nil {
		s.log.Error("delete reminder", "id", id, "err", err)
		return err
	}
	return s.cancelWhere(ctx, func(n domain.Notification) bool { return n.ReminderID == id })
}

func (s *ReminderService) DeleteAll(ctx context.Context) error {
	if err := s.repo.DeleteAllReminders(ctx); err != nil {
		s.log.Error("delete all reminders", "err", err)
		return err
	}
	return s.cancelWhere(ctx, func(n domain.Notification) bool { return n.ReminderID != "" })
}

func (s *ReminderService) cancelWhere(ctx context.Context, match func(domain.Notification) bool) error {
	pending, err := s.queue.Scheduled(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled notifications: %w", err)
	}
	for _, n := range pending {
		if !match(n) {
			continue
		}
		if err := s.queue.Cancel(ctx, n.ID); err != nil {
			return fmt.Errorf("cancel notification %s: %w", n.ID, err)
		}
	}
	return nil
}

func (s *ReminderService) notificationsFor(r domain.Reminder) []domain.Notification {
	now := s.now().In(s.loc)
	out := make([]domain.Notification, 0, len(r.Schedule.Times))
	for _, hhmm := range r.Schedule.Times {
		fireAt, err := NextOccurrence(now, hhmm)
		if err != nil {
			// normalizeSchedule already rejected malformed times
			continue
		}
		out = append(out, domain.Notification{
			ID:         "reminder-" + r.ID + "-" + strings.ReplaceAll(hhmm, ":", ""),
			ReminderID: r.ID,
			Title:      r.Title,
			Body:       r.Description,
			FireAt:     fireAt,
			Repeat:     dailyRepeat,
			At:         hhmm,
		})
	}
	return out
}

// NextOccurrence returns the next time after now that matches hhmm in
// now's location: later today, or tomorrow if that moment has passed.
func NextOccurrence(now time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse(scheduleTimeLayout, hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q must be HH:MM", domain.ErrInvalidSchedule, hhmm)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func normalizeSchedule(in domain.Schedule) (domain.Schedule, error) {
	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		kind = domain.ScheduleDaily
	}
	if kind != domain.ScheduleDaily {
		return domain.Schedule{}, fmt.Errorf("%w: unsupported type %q", domain.ErrInvalidSchedule, in.Type)
	}
	if len(in.Times) == 0 {
		return domain.Schedule{}, fmt.Errorf("%w: at least one time is required", domain.ErrInvalidSchedule)
	}

	seen := make(map[string]struct{}, len(in.Times))
	times := make([]string, 0, len(in.Times))
	for _, raw := range in.Times {
		t, err := time.Parse(scheduleTimeLayout, strings.TrimSpace(raw))
		if err != nil {
			return domain.Schedule{}, fmt.Errorf("%w: time %q must be HH:MM", domain.ErrInvalidSchedule, raw)
		}
		hhmm := t.Format(scheduleTimeLayout)
		if _, dup := seen[hhmm]; dup {
			continue
		}
		seen[hhmm] = struct{}{}
		times = append(times, hhmm)
	}
	return domain.Schedule{Type: kind, Times: times}, nil
}
