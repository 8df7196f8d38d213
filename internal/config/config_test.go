package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 15*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 60*time.Second, cfg.CleanupInterval)
	assert.Equal(t, "inventory-holds", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"STORE_BACKEND":    "Redis",
		"REDIS_DB":         "2",
		"HOLD_TTL":         "90s",
		"CLEANUP_INTERVAL": "0s",
		"KAFKA_BROKERS":    "kafka-1:9092, kafka-2:9092,",
		"AUTH_ENABLED":     "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 90*time.Second, cfg.HoldTTL)
	assert.Zero(t, cfg.CleanupInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.AuthEnabled)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad ttl":         {"HOLD_TTL": "soon"},
		"zero ttl":        {"HOLD_TTL": "0s"},
		"bad interval":    {"CLEANUP_INTERVAL": "often"},
		"bad redis db":    {"REDIS_DB": "zero"},
		"bad auth flag":   {"AUTH_ENABLED": "maybe"},
		"unknown backend": {"STORE_BACKEND": "mongo"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(lookup(env))
			assert.Error(t, err)
		})
	}
}
