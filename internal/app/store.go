package app

import (
	"context"
	"time"

	"remindme-service/internal/domain"
)

// PeopleRepository persists people.
type PeopleRepository interface {
	// ListPeople returns people newest first.
	ListPeople(ctx context.Context) ([]domain.Person, error)
	GetPerson(ctx context.Context, id string) (domain.Person, error)
	AddPerson(ctx context.Context, p domain.Person) error
	DeletePerson(ctx context.Context, id string) error
	DeleteAllPeople(ctx context.Context) error
}

// ReminderRepository persists reminders.
type ReminderRepository interface {
	// ListReminders returns reminders newest first with person name and photo joined in.
	ListReminders(ctx context.Context) ([]domain.Reminder, error)
	AddReminder(ctx context.Context, r domain.Reminder) error
	DeleteReminder(ctx context.Context, id string) error
	DeleteAllReminders(ctx context.Context) error
	ReminderExists(ctx context.Context, id string) (bool, error)
}

// SettingsRepository persists simple key/value preferences.
type SettingsRepository interface {
	ReadSetting(ctx context.Context, key string) (string, bool, error)
	WriteSetting(ctx context.Context, key, value string) error
	ClearSettings(ctx context.Context) error
}

// Store bundles the repositories a single backend provides.
type Store interface {
	PeopleRepository
	ReminderRepository
	SettingsRepository
	Close() error
}

// RosterInvalidator drops cached roster snapshots.
type RosterInvalidator interface {
	Invalidate(ctx context.Context) error
}

// NotificationQueue holds scheduled notifications until they are due.
type NotificationQueue interface {
	Schedule(ctx context.Context, n domain.Notification) error
	Cancel(ctx context.Context, id string) error
	// Scheduled lists pending notifications ordered by fire time.
	Scheduled(ctx context.Context) ([]domain.Notification, error)
	// Due removes and returns notifications whose fire time is not after now.
	Due(ctx context.Context, now time.Time) ([]domain.Notification, error)
}
