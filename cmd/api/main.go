package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lakbay-kasaysayan/internal/config"
	"lakbay-kasaysayan/internal/db"
	"lakbay-kasaysayan/internal/events"
	"lakbay-kasaysayan/internal/logging"
	"lakbay-kasaysayan/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

// Backends are the long-lived connections Run owns and closes on shutdown.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Events   events.Publisher
	Logger   *zap.Logger
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(level string) (*zap.Logger, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	migrate         func(url string) error
	connectRedis    func(config.Config) *redis.Client
	newPublisher    func(brokers []string, prefix string) events.Publisher
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Backends, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logging.New,
		connectPostgres: db.ConnectPostgres,
		migrate:         db.MigrateUp,
		connectRedis:    db.ConnectRedis,
		newPublisher:    events.New,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	log, err := deps.newLogger(cfg.LogLevel)
	if err != nil {
		log = zap.NewNop()
	}
	defer func() { _ = log.Sync() }()

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Warn("postgres connection failed", zap.Error(err))
	}
	if pg != nil && cfg.RunMigrations {
		if err := deps.migrate(cfg.PostgresURL); err != nil {
			log.Error("migrations failed", zap.Error(err))
		}
	}

	rdb := deps.connectRedis(cfg)
	publisher := deps.newPublisher(cfg.Brokers(), cfg.KafkaTopicPrefix)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	backends := Backends{Postgres: pg, Redis: rdb, Events: publisher, Logger: log}
	if err := deps.run(context.Background(), cfg, backends, signals, nil); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, b Backends, signals <-chan os.Signal, listen ListenFunc) error {
	if b.Logger == nil {
		b.Logger = zap.NewNop()
	}
	srv := server.NewServer(cfg, b.Postgres, b.Redis, b.Events, b.Logger)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
		b.Logger.Info("shutting down")
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		srv.Close()
		return err
	}
	srv.Close()
	if closer, ok := b.Events.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			b.Logger.Warn("closing event publisher", zap.Error(err))
		}
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	return nil
}
