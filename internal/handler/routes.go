package handler

import (
	"go-inventory-hold/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Reservations *ReservationHandler
	SKUs         *SKUHandler
	Dashboard    *DashboardHandler
	Maintenance  *MaintenanceHandler
}

// RegisterRoutes mounts the /api/v1 surface. With auth disabled every route is
// open, which is meant for local runs only.
func RegisterRoutes(app fiber.Router, h Handlers, authEnabled bool) {
	api := app.Group("/api/v1")

	scope := func(s string) fiber.Handler {
		if !authEnabled {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
		return middleware.RequireScope(s)
	}

	protected := api
	if authEnabled {
		protected = api.Group("", middleware.RequireAuth())
	}

	// Reservations (checkout, order service)
	protected.Post("/reservations", scope(middleware.ScopeReservationWrite), h.Reservations.Reserve)
	protected.Get("/reservations/:id", h.Reservations.GetReservation)
	protected.Delete("/reservations/:id", scope(middleware.ScopeReservationWrite), h.Reservations.Release)
	protected.Get("/holders/:holder/reservations", h.Reservations.ListByHolder)
	protected.Delete("/holders/:holder/reservations", scope(middleware.ScopeReservationWrite), h.Reservations.ReleaseByHolder)
	protected.Post("/availability/check", h.Reservations.CheckAvailability)

	// Orders (order service, payment)
	protected.Post("/orders/:orderId/transfer", scope(middleware.ScopeReservationWrite), h.Reservations.Transfer)
	protected.Post("/orders/:orderId/convert", scope(middleware.ScopeReservationConvert), h.Reservations.Convert)

	// Catalog
	protected.Get("/skus", h.SKUs.GetSKUs)
	protected.Get("/skus/:id", h.SKUs.GetSKU)
	protected.Post("/skus", scope(middleware.ScopeCatalogWrite), h.SKUs.CreateSKU)
	protected.Patch("/skus/:id/active", scope(middleware.ScopeCatalogWrite), h.SKUs.SetActive)
	protected.Post("/skus/:id/restock", scope(middleware.ScopeCatalogWrite), h.SKUs.Restock)

	// Ops
	protected.Get("/dashboard/stats", h.Dashboard.GetDashboardStats)
	protected.Post("/maintenance/cleanup", scope(middleware.ScopeOpsMaintenance), h.Maintenance.Cleanup)
}
