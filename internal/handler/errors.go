package handler

import (
	"errors"

	"go-inventory-hold/internal/repository"
	"go-inventory-hold/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError maps service and storage errors onto status codes.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSkuNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "SKU not found"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "Reservation not found"})
	case errors.Is(err, repository.ErrSkuExists):
		return c.Status(409).JSON(fiber.Map{"error": "SKU already exists"})
	case errors.Is(err, service.ErrStorageFailure):
		return c.Status(503).JSON(fiber.Map{"error": "Storage temporarily unavailable, try again"})
	default:
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
}

// Helper untuk parse UUID dari string
func parseUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}
