package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"remindme-service/internal/app"
	"remindme-service/internal/config"
	"remindme-service/internal/infra/memory"
	"remindme-service/internal/infra/postgres"
	redisinfra "remindme-service/internal/infra/redis"
	"remindme-service/internal/infra/sqlite"
	"remindme-service/internal/quiz"
	transport "remindme-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// rosterCache is what both cache backends offer the services.
type rosterCache interface {
	app.RosterSource
	app.RosterInvalidator
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	rosterTTL := config.TTLDuration(cfg.Roster.TTL, 5*time.Minute)

	var (
		cache    rosterCache
		notifier app.RosterNotifier
		queue    app.NotificationQueue
		sessions app.SessionRepository
	)
	if redisClient != nil {
		cache = redisinfra.NewRosterCache(redisClient, store, rosterTTL)
		notifier = redisinfra.NewRosterNotifier(redisClient)
		queue = redisinfra.NewNotificationQueue(redisClient)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		cache = memory.NewRosterCache(store, rosterTTL)
		notifier = memory.NewRosterNotifier()
		queue = memory.NewNotificationQueue()
		sessions = memory.NewSessionStore()
	}

	engineCfg := quiz.Config{
		PassThreshold:   *cfg.Quiz.PassThreshold,
		MaxDistractors:  *cfg.Quiz.MaxDistractors,
		NoRelationLabel: cfg.Quiz.NoRelationLabel,
	}
	if err := engineCfg.Validate(); err != nil {
		return err
	}
	engine := quiz.NewEngine(engineCfg)

	quizService := app.NewQuizService(sessions, cache, engine, logger)
	people := app.NewPeopleService(store, cache, cache, notifier, logger)
	reminders := app.NewReminderService(store, store, queue, time.Local, logger)
	settings := app.NewSettingsService(store, logger)
	dispatcher := app.NewDispatcher(queue, settings,
		config.TTLDuration(cfg.Notifications.PollInterval, time.Second),
		cfg.Notifications.SpeechRate, logger,
		app.WithLocation(time.Local), app.WithReminderCheck(store))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewAPIHandler(people, reminders, settings, dispatcher, logger).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(quizService, dispatcher, logger).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting remindme service", "port", finalPort, "storage", cfg.Storage.Driver, "redis", redisClient != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return quizService.WatchRoster(gctx, notifier)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore selects the system of record from storage.driver.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		logger.Info("opening sqlite store", "path", cfg.Storage.SQLitePath)
		return sqlite.Open(cfg.Storage.SQLitePath)
	case config.StoragePostgres:
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewStore(pool), nil
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}
}
