package handler

import (
	"errors"

	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionHeader lets a client keep several numbering sessions under one
// login (one per open form). Sessions are always scoped to the user: the
// header value is appended to the user ID, and without it the user ID alone
// is the session.
const SessionHeader = "X-Session-ID"

// getUserID returns the authenticated user set by middleware.RequireAuth.
func getUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func sessionID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return ""
	}
	if s := c.Get(SessionHeader); s != "" {
		return userID + ":" + s
	}
	return userID
}

// respondError writes err as {"error": msg} with the status its kind maps to.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUserInactive):
		status = fiber.StatusUnauthorized
	case errors.Is(err, service.ErrWrongPassword):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func invalidJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}
