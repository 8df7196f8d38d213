package handler

import (
	"context"
	"strconv"

	"go-inventory-hold/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// GetDashboardStats returns overview statistics
// Query params: low_stock (default 5)
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	threshold, err := strconv.Atoi(c.Query("low_stock", "5"))
	if err != nil || threshold < 0 {
		threshold = 5
	}

	stats, err := h.service.GetDashboardStats(c.UserContext(), threshold)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch dashboard stats"})
	}
	return c.JSON(stats)
}

// Cleaner runs one expiry and drift pass.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

type MaintenanceHandler struct {
	cleaner Cleaner
}

func NewMaintenanceHandler(cleaner Cleaner) *MaintenanceHandler {
	return &MaintenanceHandler{cleaner: cleaner}
}

func (h *MaintenanceHandler) Cleanup(c *fiber.Ctx) error {
	removed, err := h.cleaner.CleanupExpired(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}
