package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"remindme-service/internal/domain"
)

// ReminderChecker reports whether a reminder still exists.
type ReminderChecker interface {
	ReminderExists(ctx context.Context, id string) (bool, error)
}

// Dispatcher moves due notifications from the queue to connected clients.
type Dispatcher struct {
	queue      NotificationQueue
	settings   *SettingsService
	reminders  ReminderChecker
	interval   time.Duration
	speechRate float64
	loc        *time.Location
	now        func() time.Time
	log        *slog.Logger

	mu          sync.Mutex
	subscribers map[chan domain.Delivery]struct{}
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLocation sets the zone whose wall clock daily repeats follow.
// Defaults to time.Local.
func WithLocation(loc *time.Location) DispatcherOption {
	return func(d *Dispatcher) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithReminderCheck drops notifications whose reminder has been deleted
// instead of delivering and re-queueing them.
func WithReminderCheck(r ReminderChecker) DispatcherOption {
	return func(d *Dispatcher) { d.reminders = r }
}

func NewDispatcher(queue NotificationQueue, settings *SettingsService, interval time.Duration, speechRate float64, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	d := &Dispatcher{
		queue:       queue,
		settings:    settings,
		interval:    interval,
		speechRate:  speechRate,
		loc:         time.Local,
		now:         time.Now,
		log:         logger,
		subscribers: make(map[chan domain.Delivery]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDispatcherWithClock is test-only for deterministic delivery.
func NewDispatcherWithClock(queue NotificationQueue, settings *SettingsService, speechRate float64, now func() time.Time, opts ...DispatcherOption) *Dispatcher {
	d := NewDispatcher(queue, settings, time.Second, speechRate, slog.Default(), opts...)
	d.now = now
	return d
}

// Run polls the queue until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := d.Tick(ctx); err != nil {
				d.log.Error("dispatch notifications", "err", err)
			}
		}
	}
}

// Tick delivers everything due now and re-queues repeating notifications.
// It returns the number of deliveries broadcast. A failed re-queue does not
// stop the rest of the batch; all failures are joined into the error.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.queue.Due(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	enabled := d.settings.NotificationsEnabled(ctx)
	speak := d.settings.SpeechEnabled(ctx)

	delivered := 0
	var errs []error
	for _, n := range due {
		if !d.reminderAlive(ctx, n) {
			d.log.Info("notification dropped, reminder deleted", "id", n.ID, "reminder", n.ReminderID)
			continue
		}
		if enabled {
			d.broadcast(d.delivery(n, speak))
			delivered++
			d.log.Info("notification delivered", "id", n.ID, "speak", speak)
		} else {
			d.log.Info("notification suppressed", "id", n.ID)
		}

		if n.Repeat <= 0 {
			continue
		}
		next := n
		next.FireAt = d.nextFire(n, now)
		if err := d.queue.Schedule(ctx, next); err != nil {
			errs = append(errs, fmt.Errorf("reschedule %s: %w", n.ID, err))
			continue
		}
		// a delete that raced the re-queue may have missed the new entry
		if !d.reminderAlive(ctx, n) {
			if err := d.queue.Cancel(ctx, next.ID); err != nil {
				errs = append(errs, fmt.Errorf("cancel %s: %w", next.ID, err))
			}
		}
	}
	return delivered, errors.Join(errs...)
}

// nextFire returns the first repeat of n after now. Whole-day repeats are
// counted on the calendar in d.loc so a daily 08:00 stays 08:00 across
// daylight saving changes.
func (d *Dispatcher) nextFire(n domain.Notification, now time.Time) time.Time {
	if n.Repeat%dailyRepeat != 0 {
		next := n.FireAt
		for !next.After(now) {
			next = next.Add(n.Repeat)
		}
		return next
	}

	days := int(n.Repeat / dailyRepeat)
	prev := n.FireAt.In(d.loc)
	hour, minute := prev.Hour(), prev.Minute()
	// At survives a fire time that was shifted by a skipped hour
	if at, err := time.Parse(scheduleTimeLayout, n.At); err == nil {
		hour, minute = at.Hour(), at.Minute()
	}
	for day := days; ; day += days {
		next := time.Date(prev.Year(), prev.Month(), prev.Day()+day, hour, minute, 0, 0, d.loc)
		if next.After(now) {
			return next
		}
	}
}

// reminderAlive reports false only when n belongs to a reminder that is
// known to be gone. Lookup failures keep the notification.
func (d *Dispatcher) reminderAlive(ctx context.Context, n domain.Notification) bool {
	if d.reminders == nil || n.ReminderID == "" {
		return true
	}
	ok, err := d.reminders.ReminderExists(ctx, n.ReminderID)
	if err != nil {
		d.log.Warn("check reminder", "reminder", n.ReminderID, "err", err)
		return true
	}
	return ok
}

func (d *Dispatcher) delivery(n domain.Notification, speak bool) domain.Delivery {
	del := domain.Delivery{Notification: n, Speak: speak}
	if !speak {
		return del
	}
	title := n.Title
	if title == "" {
		title = "Reminder"
	}
	text := title
	if n.Body != "" {
		text = title + ". " + n.Body
	}
	del.SpeechText = text
	del.SpeechRate = d.speechRate
	return del
}

// ScheduleTest queues a one-off notification seconds from now (at least one).
func (d *Dispatcher) ScheduleTest(ctx context.Context, title, body string, seconds int) (domain.Notification, error) {
	if title == "" {
		title = "Test Reminder"
	}
	if body == "" {
		body = "This is a test"
	}
	n := domain.Notification{
		ID:     "test-" + uuid.NewString(),
		Title:  title,
		Body:   body,
		FireAt: d.now().Add(time.Duration(max(1, seconds)) * time.Second),
	}
	if err := d.queue.Schedule(ctx, n); err != nil {
		d.log.Error("schedule test notification", "err", err)
		return domain.Notification{}, err
	}
	d.log.Info("scheduled test notification", "id", n.ID, "fireAt", n.FireAt)
	return n, nil
}

func (d *Dispatcher) Scheduled(ctx context.Context) ([]domain.Notification, error) {
	return d.queue.Scheduled(ctx)
}

// CancelAll clears the queue and returns the cancelled IDs.
func (d *Dispatcher) CancelAll(ctx context.Context) ([]string, error) {
	pending, err := d.queue.Scheduled(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(pending))
	for _, n := range pending {
		if err := d.queue.Cancel(ctx, n.ID); err != nil {
			return ids, fmt.Errorf("cancel %s: %w", n.ID, err)
		}
		ids = append(ids, n.ID)
	}
	d.log.Info("cancelled scheduled notifications", "count", len(ids))
	return ids, nil
}

// Subscribe returns a channel of deliveries. The caller must invoke the
// returned cancel function to avoid leaks.
func (d *Dispatcher) Subscribe() (<-chan domain.Delivery, func()) {
	ch := make(chan domain.Delivery, 8)

	d.mu.Lock()
	d.subscribers[ch] = struct{}{}
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		if _, ok := d.subscribers[ch]; ok {
			delete(d.subscribers, ch)
			close(ch)
		}
		d.mu.Unlock()
	}
	return ch, cancel
}

func (d *Dispatcher) broadcast(del domain.Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ch := range d.subscribers {
		select {
		case ch <- del:
		default:
			d.log.Warn("subscriber backlog full, dropping notification", "id", del.Notification.ID)
		}
	}
}

// ResetAll wipes reminders, people, settings and pending notifications.
func ResetAll(ctx context.Context, people *PeopleService, reminders *ReminderService, settings *SettingsService, dispatcher *Dispatcher) error {
	if err := reminders.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	if err := people.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete people: %w", err)
	}
	if err := settings.Clear(ctx); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	if _, err := dispatcher.CancelAll(ctx); err != nil {
		return fmt.Errorf("cancel notifications: %w", err)
	}
	return nil
}
