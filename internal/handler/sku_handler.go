package handler

import (
	"go-inventory-hold/internal/model"
	"go-inventory-hold/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SKUHandler struct {
	service service.CatalogService
}

func NewSKUHandler(s service.CatalogService) *SKUHandler {
	return &SKUHandler{service: s}
}

type skuView struct {
	model.SKU
	Available int `json:"available"`
}

func view(sku *model.SKU) skuView {
	return skuView{SKU: *sku, Available: sku.Available()}
}

func (h *SKUHandler) CreateSKU(c *fiber.Ctx) error {
	var sku model.SKU
	if err := c.BodyParser(&sku); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if err := h.service.CreateSKU(c.UserContext(), &sku); err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "SKU created", "data": view(&sku)})
}

func (h *SKUHandler) GetSKUs(c *fiber.Ctx) error {
	skus, err := h.service.ListSKUs(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]skuView, len(skus))
	for i := range skus {
		out[i] = view(&skus[i])
	}
	return c.JSON(out)
}

func (h *SKUHandler) GetSKU(c *fiber.Ctx) error {
	sku, err := h.service.GetSKU(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view(sku))
}

func (h *SKUHandler) SetActive(c *fiber.Ctx) error {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil || req.IsActive == nil {
		return c.Status(400).JSON(fiber.Map{"error": "is_active is required"})
	}
	if err := h.service.SetActive(c.UserContext(), c.Params("id"), *req.IsActive); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "SKU updated", "is_active": *req.IsActive})
}

func (h *SKUHandler) Restock(c *fiber.Ctx) error {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	sku, err := h.service.Restock(c.UserContext(), c.Params("id"), req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Stock added", "data": view(sku)})
}
