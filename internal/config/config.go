package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Extraction ExtractionConfig
	Detector   DetectorConfig
	Scheduler  SchedulerConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	URL             string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional recent-hash cache settings. An empty URL
// disables the cache entirely; the database uniqueness constraint remains
// the authority either way.
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// ExtractionConfig holds endpoints and credentials for the external
// extraction services.
type ExtractionConfig struct {
	PlatformServiceURL  string // social-post and forum extraction
	PlatformAPIKey      string
	PrimaryServiceURL   string // batch-capable article extraction (tier 1)
	PrimaryAPIKey       string
	SecondaryServiceURL string // per-URL article extraction (tier 2)
	SecondaryAPIKey     string
	RequestTimeout      time.Duration
}

// DetectorConfig holds AI detector settings.
type DetectorConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// SchedulerConfig controls the periodic refresh loop.
type SchedulerConfig struct {
	Enabled        bool
	CheckInterval  time.Duration
	LookbackHours  int
	StuckThreshold time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultLogFormat = "json"

	defaultMaxConnections  = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute

	defaultRedisTTL = 24 * time.Hour

	defaultExtractionTimeout = 60 * time.Second

	defaultDetectorModel       = "gpt-4o-mini"
	defaultDetectorTemperature = 0.3
	defaultDetectorMaxTokens   = 2000
	defaultDetectorTimeout     = 90 * time.Second

	defaultCheckInterval  = 5 * time.Minute
	defaultLookbackHours  = 24
	defaultStuckThreshold = 30 * time.Minute
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxConnections:  defaultMaxConnections,
			MaxIdleConns:    defaultMaxIdleConns,
			ConnMaxLifetime: defaultConnMaxLifetime,
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
			TTL: defaultRedisTTL,
		},
		Extraction: ExtractionConfig{
			PlatformServiceURL:  os.Getenv("PLATFORM_EXTRACT_URL"),
			PlatformAPIKey:      os.Getenv("PLATFORM_EXTRACT_API_KEY"),
			PrimaryServiceURL:   os.Getenv("PRIMARY_EXTRACT_URL"),
			PrimaryAPIKey:       os.Getenv("PRIMARY_EXTRACT_API_KEY"),
			SecondaryServiceURL: os.Getenv("SECONDARY_EXTRACT_URL"),
			SecondaryAPIKey:     os.Getenv("SECONDARY_EXTRACT_API_KEY"),
			RequestTimeout:      defaultExtractionTimeout,
		},
		Detector: DetectorConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", defaultDetectorModel),
			Temperature: defaultDetectorTemperature,
			MaxTokens:   defaultDetectorMaxTokens,
			Timeout:     defaultDetectorTimeout,
		},
		Scheduler: SchedulerConfig{
			Enabled:        getEnv("SCHEDULER_ENABLED", "true") == "true",
			CheckInterval:  defaultCheckInterval,
			LookbackHours:  defaultLookbackHours,
			StuckThreshold: defaultStuckThreshold,
		},
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("EXTRACTION_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid EXTRACTION_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Extraction.RequestTimeout = d
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 2 {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: must be a float in [0,2]")
		}
		cfg.Detector.Temperature = float32(f)
	}

	if v := os.Getenv("SCHEDULER_CHECK_INTERVAL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULER_CHECK_INTERVAL_SECONDS: %w", err)
		}
		cfg.Scheduler.CheckInterval = d
	}

	if v := os.Getenv("SCHEDULER_LOOKBACK_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid SCHEDULER_LOOKBACK_HOURS: must be a positive integer")
		}
		cfg.Scheduler.LookbackHours = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
