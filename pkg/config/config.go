package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/osbuild/ibmetrics/pkg/ingest"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	Data   DataConfig
	Redis  RedisConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DataConfig describes where the build data comes from and how it is
// refreshed.
type DataConfig struct {
	DumpPath       string
	PostgresURL    string
	S3             ingest.S3Config
	S3Key          string
	CacheDir       string
	FootprintMap   string
	ReloadSchedule string
	Watch          bool
}

// RedisConfig holds the query result cache settings. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	JSON  bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("IBMETRICS_HOST", "0.0.0.0"),
			Port:            getEnv("IBMETRICS_PORT", "8080"),
			ReadTimeout:     getEnvDuration("IBMETRICS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("IBMETRICS_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("IBMETRICS_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("IBMETRICS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			DumpPath:    getEnv("IBMETRICS_DUMP_PATH", ""),
			PostgresURL: getEnv("IBMETRICS_POSTGRES_URL", ""),
			S3: ingest.S3Config{
				Bucket:    getEnv("IBMETRICS_S3_BUCKET", ""),
				Region:    getEnv("IBMETRICS_S3_REGION", "us-east-1"),
				Endpoint:  getEnv("IBMETRICS_S3_ENDPOINT", ""),
				AccessKey: getEnv("IBMETRICS_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("IBMETRICS_S3_SECRET_KEY", ""),
			},
			S3Key:          getEnv("IBMETRICS_S3_KEY", ""),
			CacheDir:       getEnv("IBMETRICS_CACHE_DIR", ingest.DefaultCacheDir()),
			FootprintMap:   getEnv("IBMETRICS_FOOTPRINT_MAP", ""),
			ReloadSchedule: getEnv("IBMETRICS_RELOAD_SCHEDULE", "0 * * * *"),
			Watch:          getEnvBool("IBMETRICS_WATCH", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("IBMETRICS_REDIS_ADDR", ""),
			Password: getEnv("IBMETRICS_REDIS_PASSWORD", ""),
			TTL:      getEnvDuration("IBMETRICS_REDIS_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("IBMETRICS_LOG_LEVEL", "info"),
			JSON:  getEnvBool("IBMETRICS_LOG_JSON", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	sources := 0
	if c.Data.DumpPath != "" {
		sources++
	}
	if c.Data.PostgresURL != "" {
		sources++
	}
	if c.Data.S3.Bucket != "" {
		if c.Data.S3Key == "" {
			return fmt.Errorf("IBMETRICS_S3_KEY is required with IBMETRICS_S3_BUCKET")
		}
		sources++
	}
	if sources == 0 {
		return fmt.Errorf("no data source configured: set IBMETRICS_DUMP_PATH, IBMETRICS_POSTGRES_URL or IBMETRICS_S3_BUCKET")
	}
	if sources > 1 {
		return fmt.Errorf("multiple data sources configured, pick one")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("IBMETRICS_PORT must not be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("IBMETRICS_PORT must be numeric: %w", err)
	}
	if c.Redis.TTL <= 0 {
		return fmt.Errorf("IBMETRICS_REDIS_TTL must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvBool retrieves a boolean environment variable with a default.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
