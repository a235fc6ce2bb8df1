package handler

import (
	"go-accounting-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	transfers service.TransferService
	reversals service.ReversalService
}

func NewTransactionHandler(transfers service.TransferService, reversals service.ReversalService) *TransactionHandler {
	return &TransactionHandler{transfers: transfers, reversals: reversals}
}

// Transfer moves money between two categories
// POST /api/v1/transfers
func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req service.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.transfers.Transfer(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transfer completed", "data": result})
}

// DeleteTransaction removes a transaction and its paired entry
// DELETE /api/v1/transactions/:id
func (h *TransactionHandler) DeleteTransaction(c *fiber.Ctx) error {
	if err := h.reversals.DeleteTransaction(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction deleted"})
}
