package server

import (
	"errors"

	"lakbay-kasaysayan/internal/achievement"
	"lakbay-kasaysayan/internal/artifact"
	"lakbay-kasaysayan/internal/auth"
	"lakbay-kasaysayan/internal/config"
	"lakbay-kasaysayan/internal/events"
	"lakbay-kasaysayan/internal/history"
	"lakbay-kasaysayan/internal/runs"
	"lakbay-kasaysayan/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	historyLive    = "live"
	historyFixture = "fixture"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Events events.Publisher
	Logger *zap.Logger
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, publisher events.Publisher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log.Named("stream")),
		Events: publisher,
		Logger: log,
	}

	registerRoutes(s)
	return s
}

// Close stops the live feed subscription.
func (s *Server) Close() {
	s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "history": s.historyMode()})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	api := s.App.Group("/api")

	// Reads fall back to fixtures without a database; everything else needs one.
	src, historySvc := s.historySource()
	history.RegisterRoutes(api.Group("/historical-events"), src, historySvc, jwtMiddleware)

	if s.DB != nil {
		auth.RegisterRoutes(api.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB), jwtMiddleware)
		runs.RegisterRoutes(api.Group("/runs"), runs.NewService(s.DB, s.Stream, s.Events, s.Logger.Named("runs")), jwtMiddleware)
		achievement.RegisterRoutes(api.Group("/achievements"), achievement.NewService(s.DB, s.Events, s.Logger.Named("achievements")), jwtMiddleware)
		artifact.RegisterRoutes(api.Group("/artifacts"), artifact.NewService(s.DB, s.Events, s.Logger.Named("artifacts")), jwtMiddleware)
	} else {
		s.Logger.Warn("postgres unavailable, only the historical catalogue is served")
		api.Use(func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		})
	}

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func (s *Server) historyMode() string {
	if s.Cfg.HistorySource == historyFixture || s.DB == nil {
		return historyFixture
	}
	return historyLive
}

func (s *Server) historySource() (history.Source, *history.Service) {
	if s.historyMode() == historyFixture {
		return history.NewFixtureSource(), nil
	}
	svc := history.NewService(s.DB)
	return svc, svc
}

// errorHandler renders every error as {"error": message}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
