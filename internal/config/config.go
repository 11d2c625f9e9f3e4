package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/mentxuapp.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	AdminUsername   string        `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword   string        `env:"ADMIN_PASSWORD" envDefault:"admin123"`
	AdminSessionTTL time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"168h"`

	RedisURL      string        `env:"REDIS_URL"`
	StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"30s"`

	RegisterRate  float64 `env:"REGISTER_RATE" envDefault:"1"`
	RegisterBurst int     `env:"REGISTER_BURST" envDefault:"5"`

	S3 S3Config `envPrefix:"S3_"`

	GoogleMapsAPIKey string `env:"GOOGLE_MAPS_API_KEY"`
	SeedStops        bool   `env:"SEED_STOPS" envDefault:"true"`
}

// S3Config configures stop image storage. Uploads are disabled when Bucket
// is empty.
type S3Config struct {
	Bucket          string `env:"BUCKET"`
	Endpoint        string `env:"ENDPOINT"`
	Region          string `env:"REGION" envDefault:"auto"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	PublicURL       string `env:"PUBLIC_URL"`
}

// Load reads an optional .env file from the working directory and then
// parses the environment. Variables already set take precedence over the
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL must be positive")
	}
	if c.RegisterRate <= 0 || c.RegisterBurst < 1 {
		return fmt.Errorf("REGISTER_RATE must be positive and REGISTER_BURST at least 1")
	}
	for i, o := range c.CORSOrigins {
		c.CORSOrigins[i] = strings.TrimSpace(o)
	}
	return nil
}
