package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/thevault/vault/internal/attempt"
	"github.com/thevault/vault/internal/auth"
	"github.com/thevault/vault/internal/classifier"
	"github.com/thevault/vault/internal/config"
	"github.com/thevault/vault/internal/notification"
	"github.com/thevault/vault/internal/routes"
	"github.com/thevault/vault/internal/session"
	"github.com/thevault/vault/internal/verification"
)

// Server wraps the Fiber application, the session registry and shared dependencies.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	sessions *session.Manager
	logger   *slog.Logger
}

// New builds every service and delegates route wiring to routes.Setup.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	var repo attempt.Repository
	if db != nil {
		pg := attempt.NewPostgresRepository(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure attempt schema: %w", err)
		}
		repo = pg
	} else {
		repo = attempt.NewMemoryRepository()
	}
	attempts := attempt.NewService(repo)

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, every verification will fail")
	}
	gemini := classifier.NewGemini(ctx, classifier.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.ClassifyTimeout,
		Logger:  logger,
	})

	issuer, err := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(session.Options{
		Timings: verification.Timings{
			Dwell:           cfg.ChallengeDwell,
			Flash:           cfg.FlashWindow,
			ClassifyTimeout: cfg.ClassifyTimeout,
		},
		ReadyTimeout: cfg.EngineReadyTimeout,
		TTL:          cfg.SessionTTL,
		Classifier:   gemini,
		Attempts:     attempts,
		Notifier:     notification.NewLoggerNotifier(logger),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// snapshots arrive as base64 data URLs
		BodyLimit: 8 * 1024 * 1024,
	})

	err = routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Sessions: sessions,
		Issuer:   issuer,
		Attempts: attempts,
	})
	if err != nil {
		sessions.Shutdown()
		return nil, err
	}

	return &Server{app: app, cfg: cfg, sessions: sessions, logger: logger}, nil
}

// Listen starts the session sweeper and the HTTP server. The sweeper stops
// when ctx is cancelled.
func (s *Server) Listen(ctx context.Context) error {
	go s.sessions.Run(ctx)
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and tears down every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.sessions.Shutdown()
	return err
}
