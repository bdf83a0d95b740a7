package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/thevault/vault/internal/attempt"
	"github.com/thevault/vault/internal/auth"
	"github.com/thevault/vault/internal/config"
	"github.com/thevault/vault/internal/identity"
	"github.com/thevault/vault/internal/middleware"
	"github.com/thevault/vault/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Sessions *session.Manager
	Issuer   *auth.TokenIssuer
	Attempts *attempt.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Sessions == nil || d.Issuer == nil || d.Attempts == nil {
		return fmt.Errorf("sessions, issuer and attempts are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		// frame uploads arrive several times a second per session
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodPost && strings.HasSuffix(c.Path(), "/frames")
		},
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterChallengeRoutes(api)
	RegisterIdentityRoutes(api, identity.NewHandler())
	RegisterSessionRoutes(api, d, session.NewHandler(d.Sessions, d.Issuer, d.Logger))
	RegisterAttemptRoutes(api, attempt.NewHandler(d.Attempts))

	return nil
}
