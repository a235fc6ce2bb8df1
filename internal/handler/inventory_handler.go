package handler

import (
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryHandler struct {
	warehouse service.WarehouseService
	numbering service.NumberingService
}

func NewInventoryHandler(warehouse service.WarehouseService, numbering service.NumberingService) *InventoryHandler {
	return &InventoryHandler{warehouse: warehouse, numbering: numbering}
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	product, err := h.warehouse.CreateProduct(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.warehouse.ListProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

// NextDocumentNumber reserves the next number for the caller's session
// GET /api/v1/documents/next-number?type=income
func (h *InventoryHandler) NextDocumentNumber(c *fiber.Ctx) error {
	docType := model.TransactionType(c.Query("type"))
	number, err := h.numbering.NextDocumentNumber(c.UserContext(), sessionID(c), docType)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"type": docType, "document_number": number})
}

// ClearDocumentNumber gives the session's reserved number back
// DELETE /api/v1/documents/next-number?type=income
func (h *InventoryHandler) ClearDocumentNumber(c *fiber.Ctx) error {
	docType := model.TransactionType(c.Query("type"))
	if err := h.numbering.ClearSavedDocumentNumber(c.UserContext(), sessionID(c), docType); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *InventoryHandler) CreateDocument(c *fiber.Ctx) error {
	var req service.CreateDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.warehouse.CreateDocument(c.UserContext(), sessionID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Document created", "data": result})
}
