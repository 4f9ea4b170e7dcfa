// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the accountsd configuration
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Mail     MailConfig
	SMS      SMSConfig
	App      AppConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr  string `env:"HTTP_ADDR" envDefault:":8080"`
	Debug bool   `env:"DEBUG" envDefault:"false"`
}

type DatabaseConfig struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DATABASE_DSN" envDefault:"file:accounts.db?cache=shared"`
}

// IsPostgres reports whether the DSN targets postgres
func (d DatabaseConfig) IsPostgres() bool {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql", "pgx":
		return true
	}
	return strings.HasPrefix(d.DSN, "postgres://") || strings.HasPrefix(d.DSN, "postgresql://")
}

// AuthConfig holds the session token options
type AuthConfig struct {
	SigningKey string        `env:"JWT_SIGNING_KEY"`
	TTL        time.Duration `env:"JWT_TTL" envDefault:"24h"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"go-accounts"`
	Audience   []string      `env:"JWT_AUDIENCE" envSeparator:"," envDefault:"accounts"`
	ResetTTL   time.Duration `env:"RESET_TTL" envDefault:"24h"`
}

func (a AuthConfig) GetSigningKey() string {
	return a.SigningKey
}

func (a AuthConfig) GetTokenExpiration() time.Duration {
	return a.TTL
}

func (a AuthConfig) GetIssuer() string {
	return a.Issuer
}

func (a AuthConfig) GetAudience() []string {
	return a.Audience
}

// RedisConfig is optional, an empty address keeps revocations in memory
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MailConfig configures SMTP delivery. An empty host logs mail instead.
type MailConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"MAIL_FROM" envDefault:"no-reply@example.com"`
	FromName string `env:"MAIL_FROM_NAME" envDefault:"Accounts"`
}

func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

type SMSConfig struct {
	APIKey     string        `env:"NEXMO_API_KEY"`
	APISecret  string        `env:"NEXMO_API_SECRET"`
	FromNumber string        `env:"NEXMO_FROM_NUMBER"`
	BaseURL    string        `env:"NEXMO_BASE_URL"`
	Timeout    time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"TestApp"`
	URL         string `env:"APP_URL" envDefault:"http://localhost:8080"`
	PhoneRegion string `env:"PHONE_REGION" envDefault:"US"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads the optional dotenv files and parses the environment. Missing
// dotenv files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		// existing environment wins over the file
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that have no usable default
func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	if c.Auth.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}
