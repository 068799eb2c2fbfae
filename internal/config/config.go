package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full server configuration. Values come from an optional
// YAML file with environment variable overrides on top.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auction AuctionConfig `yaml:"auction"`
	Auth    AuthConfig    `yaml:"auth"`
	Relay   RelayConfig   `yaml:"relay"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StorageConfig struct {
	Backend  string         `yaml:"backend"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuctionConfig struct {
	TickIntervalSec int `yaml:"tick_interval_sec"`
}

// TickInterval returns the auction clock period.
func (c AuctionConfig) TickInterval() time.Duration {
	if c.TickIntervalSec <= 0 {
		return time.Second
	}
	return time.Duration(c.TickIntervalSec) * time.Second
}

type AuthConfig struct {
	SessionDurationMin int `yaml:"session_duration_min"`
}

// SessionDuration returns the token lifetime.
func (c AuthConfig) SessionDuration() time.Duration {
	if c.SessionDurationMin <= 0 {
		return time.Hour
	}
	return time.Duration(c.SessionDurationMin) * time.Minute
}

type RelayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "postgres",
				Database: "gavel",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{
				URL: "redis://localhost:6379",
			},
		},
		Auction: AuctionConfig{TickIntervalSec: 1},
		Auth:    AuthConfig{SessionDurationMin: 60},
		Relay: RelayConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "auction.events",
		},
	}
}

// Load reads the config file at path (if it exists) over the defaults and
// applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)

	cfg.Storage.Postgres.Host = getEnv("DB_HOST", cfg.Storage.Postgres.Host)
	cfg.Storage.Postgres.Port = getEnvAsInt("DB_PORT", cfg.Storage.Postgres.Port)
	cfg.Storage.Postgres.User = getEnv("DB_USER", cfg.Storage.Postgres.User)
	cfg.Storage.Postgres.Password = getEnv("DB_PASSWORD", cfg.Storage.Postgres.Password)
	cfg.Storage.Postgres.Database = getEnv("DB_NAME", cfg.Storage.Postgres.Database)
	cfg.Storage.Postgres.SSLMode = getEnv("DB_SSLMODE", cfg.Storage.Postgres.SSLMode)

	cfg.Storage.Redis.URL = getEnv("REDIS_URL", cfg.Storage.Redis.URL)

	cfg.Relay.URL = getEnv("NATS_URL", cfg.Relay.URL)
	if v := os.Getenv("RELAY_ENABLED"); v != "" {
		cfg.Relay.Enabled = v == "true" || v == "1"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
