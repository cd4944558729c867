// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tcpsweep/logging"
)

// Config holds settings shared by the CLI and the API server.
type Config struct {
	ScanWorkers int
	ScanTimeout time.Duration

	LogLevel  slog.Level
	LogFormat string

	APIAddr        string
	APIKey         string
	APIWorkers     int
	MaxScanWorkers int
	RedisAddr      string
	RateLimit      int64
	RateWindow     time.Duration
	TaskTTL        time.Duration
}

// Defaults returns the configuration used when no variables are set.
func Defaults() Config {
	return Config{
		ScanWorkers:    1024,
		ScanTimeout:    5 * time.Second,
		LogLevel:       slog.LevelInfo,
		LogFormat:      "json",
		APIAddr:        ":8080",
		APIWorkers:     5,
		MaxScanWorkers: 4096,
		RateLimit:      60,
		RateWindow:     time.Minute,
		TaskTTL:        24 * time.Hour,
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. Variables already set in the environment win over the
// file; a missing file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables over Defaults.
func FromEnv() (Config, error) {
	cfg := Defaults()
	var err error

	if cfg.ScanWorkers, err = envInt("SCAN_WORKERS", cfg.ScanWorkers); err != nil {
		return Config{}, err
	}
	if cfg.ScanTimeout, err = envDuration("SCAN_TIMEOUT", cfg.ScanTimeout); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if cfg.LogLevel, err = logging.ParseLevel(raw); err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("LOG_FORMAT: must be json or text, got %q", cfg.LogFormat)
	}

	cfg.APIAddr = getenv("API_ADDR", cfg.APIAddr)
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.APIWorkers, err = envInt("API_WORKERS", cfg.APIWorkers); err != nil {
		return Config{}, err
	}
	if cfg.MaxScanWorkers, err = envInt("MAX_SCAN_WORKERS", cfg.MaxScanWorkers); err != nil {
		return Config{}, err
	}
	limit, err := envInt("RATE_LIMIT", int(cfg.RateLimit))
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit = int64(limit)
	if cfg.RateWindow, err = envDuration("RATE_WINDOW", cfg.RateWindow); err != nil {
		return Config{}, err
	}
	if cfg.TaskTTL, err = envDuration("TASK_TTL", cfg.TaskTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoggingOptions converts the logging settings for logging.Configure.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, raw)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		// Bare integers are seconds.
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, raw)
	}
	return d, nil
}
