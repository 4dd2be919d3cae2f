// Package config loads the custody service configuration from the
// environment, optionally seeded from a .env file and a YAML config file.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the persistence backend. An empty DSN runs the
// service on the in-memory stores.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig mirrors the logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CustodyConfig carries the domain settings.
type CustodyConfig struct {
	// MasterSecretRaw accepts raw, hex, or base64 encoded key material of at
	// least 32 bytes. It is decoded once at load time.
	MasterSecretRaw  string `yaml:"master_secret"`
	AdminJWTSecret   string `yaml:"admin_jwt_secret"`
	ReminderSchedule string `yaml:"reminder_schedule"`
	RateLimitPerSec  int    `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int    `yaml:"rate_limit_burst"`
}

// Config is the top-level service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Custody  CustodyConfig  `yaml:"custody"`

	masterSecret []byte
}

// MasterSecret returns the decoded envelope key material.
func (c *Config) MasterSecret() []byte { return c.masterSecret }

// Load reads configuration. Precedence: environment variables over the YAML
// file named by CONFIG_FILE over built-in defaults. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // allow .env for local runs

	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Custody: CustodyConfig{
			ReminderSchedule: "0 * * * *",
			RateLimitPerSec:  10,
			RateLimitBurst:   20,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	secret, err := decodeKeyMaterial(cfg.Custody.MasterSecretRaw)
	if err != nil {
		return nil, fmt.Errorf("CUSTODY_MASTER_SECRET: %w", err)
	}
	cfg.masterSecret = secret

	if cfg.Custody.AdminJWTSecret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")

	setString(&cfg.Database.DSN, "DATABASE_DSN")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.Output, "LOG_OUTPUT")

	setString(&cfg.Custody.MasterSecretRaw, "CUSTODY_MASTER_SECRET")
	setString(&cfg.Custody.AdminJWTSecret, "ADMIN_JWT_SECRET")
	setString(&cfg.Custody.ReminderSchedule, "REMINDER_SCHEDULE")
	setInt(&cfg.Custody.RateLimitPerSec, "RATE_LIMIT_PER_SEC")
	setInt(&cfg.Custody.RateLimitBurst, "RATE_LIMIT_BURST")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

// decodeKeyMaterial accepts raw bytes, hex, or base64 and requires at least
// 32 bytes of key material.
func decodeKeyMaterial(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("missing key material")
	}
	if decoded, err := hex.DecodeString(value); err == nil && len(decoded) >= 32 {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil && len(decoded) >= 32 {
		return decoded, nil
	}
	if len(value) >= 32 {
		return []byte(value), nil
	}
	return nil, fmt.Errorf("need at least 32 bytes of key material")
}
