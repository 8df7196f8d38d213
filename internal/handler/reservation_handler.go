package handler

import (
	"time"

	"go-inventory-hold/internal/model"
	"go-inventory-hold/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReservationHandler struct {
	service service.ReservationService
}

func NewReservationHandler(s service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type reserveRequest struct {
	HolderID   string                `json:"holder_id"`
	SessionID  string                `json:"session_id"`
	TTLSeconds int                   `json:"ttl_seconds"`
	Items      []service.ReserveItem `json:"items"`
}

type transferRequest struct {
	FromHolderID string                `json:"from_holder_id"`
	SessionID    string                `json:"session_id"`
	Items        []service.ReserveItem `json:"items"`
}

type itemsRequest struct {
	Items []service.ReserveItem `json:"items"`
}

// Reserve holds every item or none.
// 201 when all items are held, 409 with the per-item results when the batch failed.
func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if req.TTLSeconds < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "ttl_seconds must not be negative"})
	}

	results, err := h.service.Reserve(c.UserContext(), req.Items, service.ReserveOptions{
		Holder:    model.ParseHolder(req.HolderID),
		SessionID: req.SessionID,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		if results != nil {
			return c.Status(503).JSON(fiber.Map{"error": "Storage temporarily unavailable, try again", "data": results})
		}
		return respondError(c, err)
	}

	if !service.BatchSucceeded(results) {
		body := fiber.Map{"error": "Reservation failed", "data": results}
		if failed, ok := service.FailedItem(results); ok {
			body["failed"] = failed
		}
		return c.Status(409).JSON(body)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Reserved", "data": results})
}

func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid reservation ID"})
	}
	released, err := h.service.Release(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"released": released})
}

func (h *ReservationHandler) GetReservation(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid reservation ID"})
	}
	hold, err := h.service.GetReservation(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hold)
}

func (h *ReservationHandler) ListByHolder(c *fiber.Ctx) error {
	holds, err := h.service.ListByHolder(c.UserContext(), model.ParseHolder(c.Params("holder")))
	if err != nil {
		return respondError(c, err)
	}
	if holds == nil {
		holds = []model.Reservation{}
	}
	return c.JSON(holds)
}

func (h *ReservationHandler) ReleaseByHolder(c *fiber.Ctx) error {
	released, err := h.service.ReleaseByHolder(c.UserContext(), model.ParseHolder(c.Params("holder")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"released": released})
}

func (h *ReservationHandler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	results, err := h.service.TransferOwnership(c.UserContext(), service.TransferRequest{
		From:      model.ParseHolder(req.FromHolderID),
		OrderID:   c.Params("orderId"),
		SessionID: req.SessionID,
		Items:     req.Items,
	})
	if err != nil {
		if results != nil {
			return c.Status(503).JSON(fiber.Map{"error": "Storage temporarily unavailable, try again", "data": results})
		}
		return respondError(c, err)
	}

	for _, r := range results {
		if !r.Success {
			return c.Status(409).JSON(fiber.Map{"error": "Transfer incomplete", "data": results})
		}
	}
	return c.JSON(fiber.Map{"message": "Transferred", "data": results})
}

func (h *ReservationHandler) Convert(c *fiber.Ctx) error {
	converted, err := h.service.ConvertToSale(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"converted": converted})
}

func (h *ReservationHandler) CheckAvailability(c *fiber.Ctx) error {
	var req itemsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	report, err := h.service.CheckAvailability(c.UserContext(), req.Items)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
