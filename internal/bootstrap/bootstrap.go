package bootstrap

import (
	"context"
	"fmt"

	"go-inventory-hold/internal/config"
	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/repository"
	"go-inventory-hold/pkg/database"

	"github.com/rs/zerolog"
)

// OpenStore connects the backend named by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.ConnectDB(database.PostgresConfig{
			URL:      cfg.DatabaseURL,
			Host:     cfg.DBHost,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Name:     cfg.DBName,
			Port:     cfg.DBPort,
		})
		if err != nil {
			return nil, err
		}
		// Auto Migrate (production deployments run this once from the release job)
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("backend", cfg.StoreBackend).Msg("database connection established")
		return repository.NewGormStore(db), nil

	case config.BackendRedis:
		client, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info().Str("backend", cfg.StoreBackend).Str("addr", cfg.RedisAddr).Msg("redis connection established")
		return repository.NewRedisStore(client, cfg.RedisPrefix), nil

	case config.BackendMemory:
		log.Warn().Msg("memory backend selected, holds do not survive a restart")
		return repository.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// KafkaPublisher returns the Kafka publisher when brokers are configured, plus a
// closer for it.
func KafkaPublisher(cfg *config.Config, log zerolog.Logger) (events.Publisher, func() error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}, func() error { return nil }
	}
	p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	return p, p.Close
}
