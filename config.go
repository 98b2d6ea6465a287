package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the bot configuration
type Config struct {
	BotToken        string `validate:"required"`
	BotDebug        bool
	DatabasePath    string `validate:"required"`
	AdminsFile      string `validate:"required"`
	SuperAdminsFile string `validate:"required"`
	// SuperAdminUsers are granted super-admin regardless of the file.
	SuperAdminUsers []string
	SessionTTL      time.Duration
	LogLevel        string `validate:"oneof=debug info warn error"`
}

// ConfigError reports a missing or malformed setting. It is fatal at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var envNames = map[string]string{
	"BotToken":        "BOT_TOKEN",
	"DatabasePath":    "DATABASE_PATH",
	"AdminsFile":      "ADMINS_FILE",
	"SuperAdminsFile": "SUPERADMINS_FILE",
	"LogLevel":        "LOG_LEVEL",
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// Missing .env files are fine; the environment may carry everything.
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			slog.Debug("loaded env file", "file", f)
		}
	}

	config := &Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		DatabasePath:    getEnvWithDefault("DATABASE_PATH", "./events.db"),
		AdminsFile:      getEnvWithDefault("ADMINS_FILE", "admins.txt"),
		SuperAdminsFile: getEnvWithDefault("SUPERADMINS_FILE", "superadmins.txt"),
		SuperAdminUsers: parseCommaSeparated(os.Getenv("SUPERADMIN_USERS")),
		LogLevel:        strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		SessionTTL:      30 * time.Minute,
	}

	if v := os.Getenv("BOT_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &ConfigError{Field: "BOT_DEBUG", Err: err}
		}
		config.BotDebug = debug
	}

	if v := os.Getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, &ConfigError{Field: "SESSION_TTL", Err: err}
		}
		if ttl < 0 {
			return nil, &ConfigError{Field: "SESSION_TTL", Err: errors.New("must not be negative")}
		}
		config.SessionTTL = ttl
	}

	if err := validator.New().Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &ConfigError{Field: envNames[fe.Field()], Err: fmt.Errorf("failed %q check", fe.Tag())}
		}
		return nil, err
	}

	return config, nil
}

// SlogLevel maps LogLevel onto a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseCommaSeparated parses a comma-separated string into a slice
func parseCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := normalizeUsername(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
