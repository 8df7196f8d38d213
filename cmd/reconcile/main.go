// Command reconcile runs one expiry and drift pass and exits. It is meant for
// cron when the API runs without its scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go-inventory-hold/internal/bootstrap"
	"go-inventory-hold/internal/config"
	"go-inventory-hold/internal/service"
	"go-inventory-hold/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "maximum duration of the pass")
	flag.Parse()
	os.Exit(run(*timeout))
}

// run returns the exit code so deferred closers flush before the process ends.
func run(timeout time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Error().Err(err).Msg("invalid configuration")
		return 2
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open store")
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	publisher, closeKafka := bootstrap.KafkaPublisher(cfg, log)
	reconciler := service.NewReconciler(store, publisher, log, time.Now)
	return cleanupOnce(ctx, reconciler, closeKafka, log)
}

type cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// cleanupOnce runs one pass and flushes the events it published, whether or
// not the pass succeeded.
func cleanupOnce(ctx context.Context, c cleaner, flush func() error, log zerolog.Logger) int {
	defer func() {
		if err := flush(); err != nil {
			log.Warn().Err(err).Msg("failed to flush kafka publisher")
		}
	}()

	start := time.Now()
	removed, err := c.CleanupExpired(ctx)
	if err != nil {
		log.Error().Err(err).Int("removed", removed).Msg("cleanup failed")
		return 1
	}
	log.Info().Int("removed", removed).Dur("took", time.Since(start)).Msg("cleanup finished")
	return 0
}
