package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"filingwatch/internal/domain"
	"filingwatch/internal/engine/monitor"
)

type Config struct {
	Env         string `yaml:"env"`
	ListenAddr  string `yaml:"listen_addr"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	DBMaxConns  int    `yaml:"db_max_conns"`
	Migrate     bool   `yaml:"migrate"`
	RedisURL    string `yaml:"redis_url"`
	CronSecret  string `yaml:"cron_secret"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	MonitorVersion  string        `yaml:"monitor_version"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	TickConcurrency int           `yaml:"tick_concurrency"`

	DispatchInterval    time.Duration `yaml:"dispatch_interval"`
	DispatchBatch       int           `yaml:"dispatch_batch"`
	DispatchRate        float64       `yaml:"dispatch_rate"`
	DispatchMaxAttempts int           `yaml:"dispatch_max_attempts"`
}

func defaults() Config {
	return Config{
		Env:                 "development",
		ListenAddr:          ":8080",
		LogLevel:            "info",
		DBMaxConns:          10,
		Migrate:             true,
		KafkaTopic:          "filingwatch.notifications",
		MonitorVersion:      monitor.Version,
		TickConcurrency:     8,
		DispatchBatch:       100,
		DispatchMaxAttempts: 5,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load builds the config from defaults, then CONFIG_FILE (YAML) if set, then
// environment variables. A missing DATABASE_URL is reported as an error but the
// config is still usable; callers decide whether to fall back to memory.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = getenvInt("DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.Migrate = getenvBool("DB_MIGRATE", cfg.Migrate)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.CronSecret = getenv("CRON_SECRET", cfg.CronSecret)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	cfg.KafkaTopic = getenv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.MonitorVersion = getenv("MONITOR_VERSION", cfg.MonitorVersion)
	cfg.TickInterval = getenvDuration("TICK_INTERVAL", cfg.TickInterval)
	cfg.TickConcurrency = getenvInt("TICK_CONCURRENCY", cfg.TickConcurrency)
	cfg.DispatchInterval = getenvDuration("DISPATCH_INTERVAL", cfg.DispatchInterval)
	cfg.DispatchBatch = getenvInt("DISPATCH_BATCH", cfg.DispatchBatch)
	cfg.DispatchRate = getenvFloat("DISPATCH_RATE", cfg.DispatchRate)
	cfg.DispatchMaxAttempts = getenvInt("DISPATCH_MAX_ATTEMPTS", cfg.DispatchMaxAttempts)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

var ErrNoDatabase = errors.New("DATABASE_URL not set")

// Validate rejects settings that would make the service misbehave silently.
func (c Config) Validate() error {
	if _, err := domain.ParseEngineVersion(c.MonitorVersion); err != nil {
		return fmt.Errorf("MONITOR_VERSION: %w", err)
	}
	if c.TickConcurrency < 1 {
		return fmt.Errorf("TICK_CONCURRENCY must be positive, got %d", c.TickConcurrency)
	}
	if c.DispatchBatch < 1 {
		return fmt.Errorf("DISPATCH_BATCH must be positive, got %d", c.DispatchBatch)
	}
	if c.TickInterval < 0 || c.DispatchInterval < 0 {
		return errors.New("intervals must not be negative")
	}
	if c.Env == "production" && c.CronSecret == "" {
		return errors.New("CRON_SECRET is required in production")
	}
	return nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseFloat(v, 64); err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseBool(v); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
