// Package config loads process settings from a YAML file, with environment
// variables (optionally seeded from a .env file) taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// validate applies the same address rule as email.ParseAddress.
var validate = validator.New()

type Settings struct {
	Application ApplicationSettings `yaml:"application"`
	Database    DatabaseSettings    `yaml:"database"`
	Email       EmailSettings       `yaml:"email"`
	Worker      WorkerSettings      `yaml:"worker"`
	Log         LogSettings         `yaml:"log"`
}

type ApplicationSettings struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BodyLimitBytes  int           `yaml:"body_limit_bytes"`
	AllowedOrigins  string        `yaml:"allowed_origins"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	JWTSecret       string        `yaml:"jwt_secret"`
	JWTTTL          time.Duration `yaml:"jwt_ttl"`
}

// Address is the listen address for the HTTP server.
func (a ApplicationSettings) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DatabaseSettings describes the connection. DSN, when set, is used verbatim
// instead of the discrete fields.
type DatabaseSettings struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	DatabaseName    string        `yaml:"database_name"`
	RequireSSL      bool          `yaml:"require_ssl"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type EmailSettings struct {
	BaseURL            string        `yaml:"base_url"`
	Sender             string        `yaml:"sender"`
	AuthorizationToken string        `yaml:"authorization_token"`
	Timeout            time.Duration `yaml:"timeout"`
}

type WorkerSettings struct {
	Concurrency          int           `yaml:"concurrency"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	ErrorBackoff         time.Duration `yaml:"error_backoff"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used for every field the file and the
// environment leave unset.
func Default() Settings {
	return Settings{
		Application: ApplicationSettings{
			Host:            "0.0.0.0",
			Port:            8080,
			BodyLimitBytes:  4 * 1024 * 1024,
			AllowedOrigins:  "*",
			RateLimitMax:    60,
			RateLimitWindow: time.Minute,
			JWTTTL:          24 * time.Hour,
		},
		Database: DatabaseSettings{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			DatabaseName:    "newsletter",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Email: EmailSettings{
			Timeout: 10 * time.Second,
		},
		Worker: WorkerSettings{
			Concurrency:  1,
			PollInterval: 10 * time.Second,
			ErrorBackoff: time.Second,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Settings, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	s := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&s)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func applyEnv(s *Settings) {
	s.Application.Host = envString("APP_HOST", s.Application.Host)
	s.Application.Port = envInt("APP_PORT", envInt("PORT", s.Application.Port))
	s.Application.BodyLimitBytes = envInt("BODY_LIMIT_BYTES", s.Application.BodyLimitBytes)
	s.Application.AllowedOrigins = envString("ALLOWED_ORIGINS", s.Application.AllowedOrigins)
	s.Application.RateLimitMax = envInt("RATE_LIMIT_MAX", s.Application.RateLimitMax)
	s.Application.RateLimitWindow = envDuration("RATE_LIMIT_WINDOW", s.Application.RateLimitWindow)
	s.Application.JWTSecret = envString("APP_JWT_SECRET", envString("JWT_SECRET", s.Application.JWTSecret))
	s.Application.JWTTTL = envDuration("APP_JWT_TTL", s.Application.JWTTTL)

	s.Database.Driver = envString("DATABASE_DRIVER", s.Database.Driver)
	s.Database.Host = envString("DATABASE_HOST", s.Database.Host)
	s.Database.Port = envInt("DATABASE_PORT", s.Database.Port)
	s.Database.Username = envString("DATABASE_USERNAME", s.Database.Username)
	s.Database.Password = envString("DATABASE_PASSWORD", s.Database.Password)
	s.Database.DatabaseName = envString("DATABASE_NAME", s.Database.DatabaseName)
	s.Database.RequireSSL = envBool("DATABASE_REQUIRE_SSL", s.Database.RequireSSL)
	s.Database.DSN = envString("DATABASE_URL", s.Database.DSN)
	s.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", s.Database.MaxOpenConns)

	s.Email.BaseURL = envString("EMAIL_BASE_URL", s.Email.BaseURL)
	s.Email.Sender = envString("EMAIL_SENDER", s.Email.Sender)
	s.Email.AuthorizationToken = envString("EMAIL_AUTHORIZATION_TOKEN", s.Email.AuthorizationToken)
	s.Email.Timeout = envDuration("EMAIL_TIMEOUT", s.Email.Timeout)

	s.Worker.Concurrency = envInt("WORKER_CONCURRENCY", s.Worker.Concurrency)
	s.Worker.PollInterval = envDuration("WORKER_POLL_INTERVAL", s.Worker.PollInterval)
	s.Worker.ErrorBackoff = envDuration("WORKER_ERROR_BACKOFF", s.Worker.ErrorBackoff)
	s.Worker.MaxConsecutiveErrors = envInt("WORKER_MAX_CONSECUTIVE_ERRORS", s.Worker.MaxConsecutiveErrors)

	s.Log.Level = envString("LOG_LEVEL", s.Log.Level)
	s.Log.Format = envString("LOG_FORMAT", s.Log.Format)
}

// Validate reports every problem found, joined into one error.
func (s Settings) Validate() error {
	var errs []error

	if strings.TrimSpace(s.Application.JWTSecret) == "" {
		errs = append(errs, errors.New("application.jwt_secret is required (or set APP_JWT_SECRET)"))
	}
	if s.Application.Port <= 0 || s.Application.Port > 65535 {
		errs = append(errs, fmt.Errorf("application.port %d out of range", s.Application.Port))
	}
	switch s.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of postgres, mysql, sqlite", s.Database.Driver))
	}
	if s.Email.Sender != "" {
		if err := validate.Var(s.Email.Sender, "email,max=320"); err != nil {
			errs = append(errs, fmt.Errorf("email.sender: %w", err))
		}
	}
	if s.Email.Timeout <= 0 {
		errs = append(errs, errors.New("email.timeout must be positive"))
	}
	if s.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	if s.Worker.PollInterval <= 0 || s.Worker.ErrorBackoff <= 0 {
		errs = append(errs, errors.New("worker.poll_interval and worker.error_backoff must be positive"))
	}

	return errors.Join(errs...)
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
