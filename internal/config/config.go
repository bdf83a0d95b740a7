package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME"         envDefault:"TheVault"`
	AppEnv         string        `env:"APP_ENV"          envDefault:"development"`
	Port           string        `env:"PORT"             envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL"        envDefault:"info"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL"  envDefault:"24h"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL"        envDefault:"15m"`
	SessionRate   int           `env:"SESSION_RATE_LIMIT" envDefault:"10"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-3-flash-preview"`

	ChallengeDwell     time.Duration `env:"CHALLENGE_DWELL"      envDefault:"3500ms"`
	FlashWindow        time.Duration `env:"FLASH_WINDOW"         envDefault:"600ms"`
	EngineReadyTimeout time.Duration `env:"ENGINE_READY_TIMEOUT" envDefault:"10s"`
	ClassifyTimeout    time.Duration `env:"CLASSIFY_TIMEOUT"     envDefault:"30s"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// devSessionSecret signs session tokens in development when no secret is set.
const devSessionSecret = "vault-dev-session-secret"

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecret
	}
	return cfg, nil
}

func (c Config) validate() error {
	for name, d := range map[string]time.Duration{
		"CHALLENGE_DWELL":      c.ChallengeDwell,
		"FLASH_WINDOW":         c.FlashWindow,
		"ENGINE_READY_TIMEOUT": c.EngineReadyTimeout,
		"CLASSIFY_TIMEOUT":     c.ClassifyTimeout,
		"SESSION_TTL":          c.SessionTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.SessionRate <= 0 {
		return errors.New("SESSION_RATE_LIMIT must be positive")
	}
	if c.IsDev() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the service runs in a local development environment,
// where Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
