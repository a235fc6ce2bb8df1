package service

import (
	"errors"

	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/ledger"
	"go-accounting-ws/internal/ws"
	"go-accounting-ws/pkg/validator"

	"github.com/google/uuid"
)

// validate runs the struct tags of req and converts the first failure into a
// ValidationError.
func validate(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return apperrors.NewValidationError(validator.Message(errs))
	}
	return nil
}

// notFoundAs turns ledger.ErrNotFound into a NotFoundError for resource.
// Other errors pass through unchanged.
func notFoundAs(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id.String())
	}
	return err
}

// isTyped reports whether err already belongs to the caller-facing taxonomy.
func isTyped(err error) bool {
	return apperrors.IsValidationError(err) ||
		apperrors.IsNotFoundError(err) ||
		apperrors.IsContentionError(err) ||
		apperrors.IsOperationFailed(err)
}

func publish(p ws.Publisher, event string, data interface{}) {
	if p != nil {
		p.Publish(event, data)
	}
}
