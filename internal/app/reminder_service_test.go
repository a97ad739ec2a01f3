package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"remindme-service/internal/app"
	"remindme-service/internal/domain"
	"remindme-service/internal/infra/memory"
)

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		hhmm string
		want time.Time
	}{
		"later today":      {hhmm: "18:00", want: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)},
		"already passed":   {hhmm: "08:00", want: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)},
		"exactly now":      {hhmm: "09:30", want: time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)},
		"one minute ahead": {hhmm: "09:31", want: time.Date(2024, 5, 1, 9, 31, 0, 0, time.UTC)},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := app.NextOccurrence(now, tc.hhmm)
			if err != nil {
				t.Fatalf("next occurrence: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if _, err := app.NextOccurrence(now, "25:99"); !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func newReminderService(t *testing.T, now time.Time) (*app.ReminderService, *memory.Store, *memory.NotificationQueue) {
	t.Helper()
	store := memory.NewStore()
	queue := memory.NewNotificationQueue()
	svc := app.NewReminderServiceWithClock(store, store, queue, time.UTC, func() time.Time { return now })
	return svc, store, queue
}

func TestAddReminderSchedulesNotifications(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	svc, store, queue := newReminderService(t, now)

	photo := "file:///alice.jpg"
	if err := store.AddPerson(ctx, domain.Person{ID: "alice", Name: "Alice", PhotoURI: &photo}); err != nil {
		t.Fatalf("seed person: %v", err)
	}

	r, err := svc.Add(ctx, domain.NewReminderInput{
		Title:       " Take BP tablet ",
		Description: "After breakfast",
		Schedule:    domain.Schedule{Type: "daily", Times: []string{"08:00", "20:15", "08:00"}},
		PersonID:    strPtr("alice"),
	})
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	if r.Title != "Take BP tablet" || r.Icon != "bell" {
		t.Fatalf("unexpected reminder %+v", r)
	}
	if len(r.Schedule.Times) != 2 {
		t.Fatalf("expected duplicate time dropped, got %v", r.Schedule.Times)
	}
	if r.PersonName == nil || *r.PersonName != "Alice" {
		t.Fatalf("expected person joined, got %+v", r)
	}

	pending, _ := queue.Scheduled(ctx)
	if len(pending) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(pending))
	}
	if pending[0].ID != "reminder-"+r.ID+"-2015" || !pending[0].FireAt.Equal(time.Date(2024, 5, 1, 20, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first notification %+v", pending[0])
	}
	if !pending[1].FireAt.Equal(time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)) || pending[1].Repeat != 24*time.Hour || pending[1].At != "08:00" {
		t.Fatalf("unexpected second notification %+v", pending[1])
	}
	if pending[1].Body != "After breakfast" {
		t.Fatalf("expected description as body, got %q", pending[1].Body)
	}
}

func TestAddReminderValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newReminderService(t, time.Now())

	tests := map[string]struct {
		in   domain.NewReminderInput
		want error
	}{
		"missing title": {
			in:   domain.NewReminderInput{Schedule: domain.Schedule{Times: []string{"08:00"}}},
			want: domain.ErrInvalidReminder,
		},
		"no times": {
			in:   domain.NewReminderInput{Title: "x"},
			want: domain.ErrInvalidSchedule,
		},
		"weekly unsupported": {
			in:   domain.NewReminderInput{Title: "x", Schedule: domain.Schedule{Type: "weekly", Times: []string{"08:00"}}},
			want: domain.ErrInvalidSchedule,
		},
		"bad time": {
			in:   domain.NewReminderInput{Title: "x", Schedule: domain.Schedule{Times: []string{"8am"}}},
			want: domain.ErrInvalidSchedule,
		},
		"unknown person": {
			in:   domain.NewReminderInput{Title: "x", Schedule: domain.Schedule{Times: []string{"08:00"}}, PersonID: strPtr("nobody")},
			want: domain.ErrPersonNotFound,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Add(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDeleteReminderCancelsNotifications(t *testing.T) {
	ctx := context.Background()
	svc, _, queue := newReminderService(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	if _, err := svc.Add(ctx, domain.NewReminderInput{Title: "keep", Schedule: domain.Schedule{Times: []string{"10:00"}}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	drop, err := svc.Add(ctx, domain.NewReminderInput{Title: "drop", Schedule: domain.Schedule{Times: []string{"11:00", "12:00"}}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = queue.Schedule(ctx, domain.Notification{ID: "test-1", FireAt: time.Now()})

	if err := svc.Delete(ctx, drop.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	pending, _ := queue.Scheduled(ctx)
	if len(pending) != 2 {
		t.Fatalf("expected keep + test notification left, got %+v", pending)
	}
	for _, n := range pending {
		if n.ReminderID == drop.ID {
			t.Fatalf("notification for deleted reminder still pending: %+v", n)
		}
	}

	if err := svc.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	pending, _ = queue.Scheduled(ctx)
	if len(pending) != 1 || pending[0].ID != "test-1" {
		t.Fatalf("expected only the test notification left, got %+v", pending)
	}
	reminders, _ := svc.List(ctx)
	if len(reminders) != 0 {
		t.Fatalf("expected no reminders, got %d", len(reminders))
	}
}
