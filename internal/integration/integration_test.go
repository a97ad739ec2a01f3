package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"remindme-service/internal/app"
	"remindme-service/internal/domain"
	"remindme-service/internal/infra/postgres"
	pgmigrations "remindme-service/internal/infra/postgres/migrations"
	infraredis "remindme-service/internal/infra/redis"
	"remindme-service/internal/quiz"
)

func TestRosterChangeAcrossInstances(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	// two instances share Postgres and Redis
	cacheA := infraredis.NewRosterCache(redisClient, store, 5*time.Minute)
	notifierA := infraredis.NewRosterNotifier(redisClient)
	peopleA := app.NewPeopleService(store, cacheA, cacheA, notifierA, nil)

	cacheB := infraredis.NewRosterCache(redisClient, store, 5*time.Minute)
	quizB := app.NewQuizService(infraredis.NewSessionStore(redisClient, 5*time.Minute), cacheB, quiz.NewEngine(quiz.DefaultConfig()), nil)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() { _ = quizB.WatchRoster(watchCtx, infraredis.NewRosterNotifier(redisClient)) }()
	time.Sleep(200 * time.Millisecond)

	for _, name := range []string{"Alice", "Bob"} {
		if _, err := peopleA.Add(ctx, domain.NewPersonInput{Name: name}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	view, err := quizB.Start(ctx, "player-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Status != quiz.StatusRunning || view.Rounds != 2 {
		t.Fatalf("expected running quiz over 2 people, got %+v", view)
	}

	if _, err := peopleA.Add(ctx, domain.NewPersonInput{Name: "Carol"}); err != nil {
		t.Fatalf("add Carol: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for quizB.State(ctx, "player-1").Status != quiz.StatusIdle {
		if time.Now().After(deadline) {
			t.Fatalf("quiz was not invalidated by roster change on the other instance")
		}
		time.Sleep(20 * time.Millisecond)
	}

	roster, err := cacheB.Roster(ctx)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster.Entries) != 3 {
		t.Fatalf("expected 3 people after change, got %d", len(roster.Entries))
	}
}

func TestReminderDeliveryThroughRedisQueue(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	now := time.Date(2024, 5, 1, 7, 59, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	queue := infraredis.NewNotificationQueue(redisClient)
	reminders := app.NewReminderServiceWithClock(store, store, queue, time.UTC, clock)
	settings := app.NewSettingsService(store, nil)
	dispatcher := app.NewDispatcherWithClock(queue, settings, 0.95, clock)

	r, err := reminders.Add(ctx, domain.NewReminderInput{
		Title:    "Take BP tablet",
		Schedule: domain.Schedule{Type: domain.ScheduleDaily, Times: []string{"08:00"}},
	})
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}

	listed, err := reminders.List(ctx)
	if err != nil || len(listed) != 1 || listed[0].Schedule.Times[0] != "08:00" {
		t.Fatalf("unexpected reminders %+v (err=%v)", listed, err)
	}

	deliveries, cancel := dispatcher.Subscribe()
	defer cancel()

	now = now.Add(time.Minute)
	if n, err := dispatcher.Tick(ctx); err != nil || n != 1 {
		t.Fatalf("tick: n=%d err=%v", n, err)
	}
	del := <-deliveries
	if del.Notification.ReminderID != r.ID || del.SpeechText != "Take BP tablet" {
		t.Fatalf("unexpected delivery %+v", del)
	}

	pending, err := queue.Scheduled(ctx)
	if err != nil {
		t.Fatalf("scheduled: %v", err)
	}
	if len(pending) != 1 || !pending[0].FireAt.Equal(time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next daily occurrence queued, got %+v", pending)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "remindme", "POSTGRES_PASSWORD": "remindme", "POSTGRES_DB": "remindme"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://remindme:remindme@%s:%s/remindme?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// migrateDB retries while Postgres finishes its init restart.
func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	var err error
	for attempt := 0; attempt < 20; attempt++ {
		if err = migrator.Init(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
