package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go-inventory-hold/internal/bootstrap"
	"go-inventory-hold/internal/config"
	"go-inventory-hold/internal/events"
	"go-inventory-hold/internal/handler"
	"go-inventory-hold/internal/metrics"
	"go-inventory-hold/internal/middleware"
	"go-inventory-hold/internal/service"
	"go-inventory-hold/internal/tracing"
	"go-inventory-hold/internal/ws"
	"go-inventory-hold/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	shutdownTracing, err := tracing.Init("inventory-hold", cfg.OTLPEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}

	// 3. Setup storage
	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}

	// 4. Setup WebSocket Hub and event publishers
	wsHub := ws.NewHub(log)
	go wsHub.Run(ctx)
	kafkaPub, closeKafka := bootstrap.KafkaPublisher(cfg, log)
	publisher := events.Multi{wsHub, kafkaPub}

	// 5. Dependency Injection (Wiring Layers)
	reconciler := service.NewReconciler(store, publisher, log, time.Now)
	resService := service.NewReservationService(store, reconciler, publisher, log, service.ReservationConfig{
		HoldTTL: cfg.HoldTTL,
	})
	catalogService := service.NewCatalogService(store, publisher, log)
	dashService := service.NewDashboardService(store, time.Now)

	handlers := handler.Handlers{
		Reservations: handler.NewReservationHandler(resService),
		SKUs:         handler.NewSKUHandler(catalogService),
		Dashboard:    handler.NewDashboardHandler(dashService),
		Maintenance:  handler.NewMaintenanceHandler(reconciler),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Inventory Hold Service v1.0",
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(tracing.Middleware())
	app.Use(metrics.Middleware)
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "backend": cfg.StoreBackend})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 7. Routes
	handler.RegisterRoutes(app, handlers, cfg.AuthEnabled)
	if !cfg.AuthEnabled {
		log.Warn().Msg("authentication disabled")
	}

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		if !wsHub.Join(c) {
			return
		}
		defer wsHub.Leave(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Scheduled cleanup
	go reconciler.Run(ctx, cfg.CleanupInterval)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()
	log.Info().Str("port", cfg.Port).Str("backend", cfg.StoreBackend).Dur("hold_ttl", cfg.HoldTTL).Msg("server started")

	// 9. Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := closeKafka(); err != nil {
		log.Warn().Err(err).Msg("failed to flush kafka publisher")
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close store")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("server exited")
}
