package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DB_URL"`
	DBMaxOpenConns int      `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int      `mapstructure:"DB_MAX_IDLE_CONNS"`
	SecretKey      string   `mapstructure:"SECRET_KEY"`
	CORSOrigins    []string `mapstructure:"-"`

	DefaultDurationMinutes int           `mapstructure:"APPOINTMENT_DEFAULT_DURATION_MINUTES"`
	ReaperEnabled          bool          `mapstructure:"REAPER_ENABLED"`
	ReaperInterval         time.Duration `mapstructure:"REAPER_INTERVAL"`
	ReaperGrace            time.Duration `mapstructure:"REAPER_GRACE"`

	ListDefaultLimit  int `mapstructure:"LIST_DEFAULT_LIMIT"`
	ListMaxLimit      int `mapstructure:"LIST_MAX_LIMIT"`
	AdminDefaultLimit int `mapstructure:"ADMIN_DEFAULT_LIMIT"`
	AdminMaxLimit     int `mapstructure:"ADMIN_MAX_LIMIT"`

	RedisURL  string `mapstructure:"REDIS_URL"`
	SentryDSN string `mapstructure:"SENTRY_DSN"`

	StreamAPIKey    string `mapstructure:"STREAM_API_KEY"`
	StreamAPISecret string `mapstructure:"STREAM_API_SECRET"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
}

var keys = []string{
	"PORT", "ENV", "DB_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "SECRET_KEY", "CORS_ORIGINS",
	"APPOINTMENT_DEFAULT_DURATION_MINUTES", "REAPER_ENABLED", "REAPER_INTERVAL", "REAPER_GRACE",
	"LIST_DEFAULT_LIMIT", "LIST_MAX_LIMIT", "ADMIN_DEFAULT_LIMIT", "ADMIN_MAX_LIMIT",
	"REDIS_URL", "SENTRY_DSN", "STREAM_API_KEY", "STREAM_API_SECRET",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS",
}

// Load reads .env (if present) into the process environment and builds the
// config from environment variables.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("APPOINTMENT_DEFAULT_DURATION_MINUTES", 90)
	v.SetDefault("REAPER_ENABLED", true)
	v.SetDefault("REAPER_INTERVAL", "5m")
	v.SetDefault("REAPER_GRACE", "15m")
	v.SetDefault("LIST_DEFAULT_LIMIT", 20)
	v.SetDefault("LIST_MAX_LIMIT", 100)
	v.SetDefault("ADMIN_DEFAULT_LIMIT", 100)
	v.SetDefault("ADMIN_MAX_LIMIT", 500)
	v.SetDefault("SMTP_PORT", 587)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, origin := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings every command needs. RequireDatabase is
// separate so tests and tooling can validate without a DSN.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("APPOINTMENT_DEFAULT_DURATION_MINUTES must be positive, got %d", c.DefaultDurationMinutes)
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive, got %s", c.ReaperInterval)
	}
	if c.ReaperGrace < 0 {
		return fmt.Errorf("REAPER_GRACE must not be negative, got %s", c.ReaperGrace)
	}
	if c.ListDefaultLimit <= 0 || c.ListMaxLimit < c.ListDefaultLimit {
		return fmt.Errorf("LIST_MAX_LIMIT (%d) must be >= LIST_DEFAULT_LIMIT (%d) > 0", c.ListMaxLimit, c.ListDefaultLimit)
	}
	if c.AdminDefaultLimit <= 0 || c.AdminMaxLimit < c.AdminDefaultLimit {
		return fmt.Errorf("ADMIN_MAX_LIMIT (%d) must be >= ADMIN_DEFAULT_LIMIT (%d) > 0", c.AdminMaxLimit, c.AdminDefaultLimit)
	}
	return nil
}

func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	return nil
}
