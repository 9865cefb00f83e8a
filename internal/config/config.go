// Package config loads service configuration from the environment
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Environments in which interactive docs are exposed.
var showDocsEnvironments = map[string]bool{
	"development": true,
	"local":       true,
}

// Config is the full service configuration.
type Config struct {
	AppName     string `env:"APP_NAME,default=Datagotchi API"`
	AppVersion  string `env:"APP_VERSION,default=0.1.0"`
	Environment string `env:"ENVIRONMENT,default=development"`
	Port        int    `env:"PORT,default=8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_KEY"`
	RedisURL    string `env:"REDIS_URL"`

	OpenAIKey      string `env:"OPENAI_API_KEY"`
	EmbeddingModel string `env:"EMBEDDING_MODEL,default=text-embedding-3-small"`

	JWTSecret    string        `env:"JWT_SECRET"`
	SessionTTL   time.Duration `env:"SESSION_TTL,default=24h"`
	AllowOrigins string        `env:"CORS_ALLOWED_ORIGINS"`

	ScraperTimeout time.Duration `env:"SCRAPER_TIMEOUT,default=30s"`

	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND,default=20"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST,default=40"`

	RewardsConfigPath string `env:"REWARDS_CONFIG,default=config/rewards.yaml"`
}

// Load reads .env (when present) and decodes the environment. APP_ENV is
// honored as an alias for ENVIRONMENT for compatibility with the deploy
// pipeline.
func Load() (*Config, error) {
	_ = godotenv.Load()

	if env := strings.TrimSpace(os.Getenv("APP_ENV")); env != "" && os.Getenv("ENVIRONMENT") == "" {
		os.Setenv("ENVIRONMENT", env)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	switch cfg.Environment {
	case "development", "staging", "production", "local":
	default:
		return nil, fmt.Errorf("unsupported environment %q", cfg.Environment)
	}

	return &cfg, nil
}

// ShowDocs reports whether interactive docs should be served.
func (c *Config) ShowDocs() bool {
	return showDocsEnvironments[c.Environment]
}

// AllowedOrigins returns the parsed CORS origin list. Local frontend dev
// servers are allowed when nothing is configured.
func (c *Config) AllowedOrigins() []string {
	raw := c.AllowOrigins
	if strings.TrimSpace(raw) == "" {
		raw = "http://localhost:3000,http://localhost:5173"
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
