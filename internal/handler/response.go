package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/processor"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

type processorErrorDetails struct {
	Operation  string `json:"operation"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError
	var details any

	var validation *domain.ValidationError
	var transport *processor.TransportError

	switch {
	case errors.As(err, &validation):
		fields := make([]FieldError, 0, len(validation.Violations))
		for _, v := range validation.Violations {
			fields = append(fields, FieldError{Field: v.Field, Message: v.Message})
		}
		RespondValidationError(w, fields)
		return
	case errors.As(err, &transport):
		appErr = ErrProcessorUnavailable
		details = processorErrorDetails{
			Operation:  transport.Op,
			StatusCode: transport.StatusCode,
			Message:    transport.Message,
		}
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrAmbiguousIdentifier):
		appErr = ErrAmbiguousIdentifier
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrValidationFailed
	case errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrVersionConflict
	case errors.Is(err, domain.ErrDuplicateReference):
		appErr = ErrDuplicateReference
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, details)
}
