package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	DBPath        string
	MigrationsDir string
	HandlePath    string
	CatalogPath   string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string

	DefaultRestSeconds int
	MaxRestSeconds     int
	RestAfterWarmup    bool
	WriteTimeout       time.Duration

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/workout.db"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		HandlePath:    getEnv("HANDLE_PATH", "./data/active-session.json"),
		CatalogPath:   getEnv("CATALOG_PATH", ""),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),

		DefaultRestSeconds: getEnvInt("DEFAULT_REST_SECONDS", 90),
		MaxRestSeconds:     getEnvInt("MAX_REST_SECONDS", 900),
		RestAfterWarmup:    getEnvBool("REST_AFTER_WARMUP", true),
		WriteTimeout:       time.Duration(getEnvInt("WRITE_TIMEOUT_MS", 5000)) * time.Millisecond,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate rejects settings the session runtime cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.DefaultRestSeconds <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_REST_SECONDS must be positive, got %d", c.DefaultRestSeconds))
	}
	if c.MaxRestSeconds <= 0 {
		errs = append(errs, fmt.Errorf("MAX_REST_SECONDS must be positive, got %d", c.MaxRestSeconds))
	}
	if c.DefaultRestSeconds > c.MaxRestSeconds {
		errs = append(errs, fmt.Errorf("DEFAULT_REST_SECONDS %d exceeds MAX_REST_SECONDS %d", c.DefaultRestSeconds, c.MaxRestSeconds))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("WRITE_TIMEOUT_MS must be positive"))
	}
	if c.HandlePath == "" {
		errs = append(errs, errors.New("HANDLE_PATH must not be empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
