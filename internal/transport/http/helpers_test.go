package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remindme-service/internal/app"
	"remindme-service/internal/domain"
	"remindme-service/internal/infra/memory"
	"remindme-service/internal/quiz"
)

type testServer struct {
	*httptest.Server
	people     *app.PeopleService
	dispatcher *app.Dispatcher
	queue      *memory.NotificationQueue
	sessions   *memory.SessionStore
	clock      time.Time
}

func newTestServer(t *testing.T, people ...domain.NewPersonInput) *testServer {
	t.Helper()
	store := memory.NewStore()
	cache := memory.NewRosterCache(store, time.Minute)
	notifier := memory.NewRosterNotifier()
	queue := memory.NewNotificationQueue()

	ts := &testServer{queue: queue, sessions: memory.NewSessionStore(), clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return ts.clock }

	settings := app.NewSettingsService(store, nil)
	ts.people = app.NewPeopleService(store, cache, cache, notifier, nil)
	reminders := app.NewReminderServiceWithClock(store, store, queue, time.UTC, now)
	ts.dispatcher = app.NewDispatcherWithClock(queue, settings, 0.95, now)
	quizService := app.NewQuizService(ts.sessions, cache, quiz.NewEngine(quiz.DefaultConfig()), nil)

	for _, p := range people {
		if _, err := ts.people.Add(context.Background(), p); err != nil {
			t.Fatalf("seed person: %v", err)
		}
	}

	mux := http.NewServeMux()
	NewAPIHandler(ts.people, reminders, settings, ts.dispatcher, nil).Register(mux)
	mux.HandleFunc("/ws", NewWSHandler(quizService, ts.dispatcher, nil).ServeWS)
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func strPtr(s string) *string { return &s }
