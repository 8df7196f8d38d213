package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Port         string
	StoreBackend string

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	HoldTTL         time.Duration
	CleanupInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	AuthEnabled bool

	LogLevel  string
	LogPretty bool

	OTLPEndpoint string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function so tests can feed a map.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:          get("PORT", "3000"),
		StoreBackend:  strings.ToLower(get("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:   get("DATABASE_URL", ""),
		DBHost:        get("DB_HOST", "localhost"),
		DBUser:        get("DB_USER", "postgres"),
		DBPassword:    get("DB_PASSWORD", ""),
		DBName:        get("DB_NAME", "inventory"),
		DBPort:        get("DB_PORT", "5432"),
		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisPrefix:   get("REDIS_PREFIX", "inv:"),
		KafkaTopic:    get("KAFKA_TOPIC", "inventory-holds"),
		LogLevel:      get("LOG_LEVEL", "info"),
		OTLPEndpoint:  get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.HoldTTL, err = time.ParseDuration(get("HOLD_TTL", "15m")); err != nil {
		return nil, fmt.Errorf("HOLD_TTL: %w", err)
	}
	if cfg.HoldTTL <= 0 {
		return nil, fmt.Errorf("HOLD_TTL must be positive, got %s", cfg.HoldTTL)
	}
	if cfg.CleanupInterval, err = time.ParseDuration(get("CLEANUP_INTERVAL", "60s")); err != nil {
		return nil, fmt.Errorf("CLEANUP_INTERVAL: %w", err)
	}
	if cfg.AuthEnabled, err = strconv.ParseBool(get("AUTH_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("AUTH_ENABLED: %w", err)
	}
	if cfg.LogPretty, err = strconv.ParseBool(get("LOG_PRETTY", "false")); err != nil {
		return nil, fmt.Errorf("LOG_PRETTY: %w", err)
	}

	for _, b := range strings.Split(get("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	switch cfg.StoreBackend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}
