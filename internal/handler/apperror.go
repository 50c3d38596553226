package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest       = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed     = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrAmbiguousIdentifier  = &AppError{http.StatusBadRequest, "AMBIGUOUS_IDENTIFIER", "Provide exactly one of tx_ref or processor_tx_id"}
	ErrInvalidSignature     = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrResourceNotFound     = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Payment not found"}
	ErrVersionConflict      = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Payment was modified concurrently, please retry"}
	ErrIdempotencyConflict  = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInFlight  = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT", "A request with this idempotency key is still being processed"}
	ErrDuplicateReference   = &AppError{http.StatusConflict, "DUPLICATE_REFERENCE", "Could not allocate a unique payment reference"}
	ErrProcessorUnavailable = &AppError{http.StatusInternalServerError, "PROCESSOR_ERROR", "Payment processor request failed"}
	ErrInternalError        = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
)
