package apperrors

import "github.com/gofiber/fiber/v2"

// StatusCode maps an error from the service layer to an HTTP status.
func StatusCode(err error) int {
	switch {
	case IsValidationError(err):
		return fiber.StatusBadRequest
	case IsNotFoundError(err):
		return fiber.StatusNotFound
	case IsContentionError(err):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
