package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrAmbiguousIdentifier = errors.New("exactly one payment identifier is required")
	ErrDuplicateReference  = errors.New("duplicate merchant reference")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrProcessorIDConflict = errors.New("processor transaction id belongs to another payment")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
)

type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError lists every invalid input field. It matches ErrValidation.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	msg := ErrValidation.Error() + ":"
	for i, v := range e.Violations {
		if i > 0 {
			msg += ","
		}
		msg += " " + v.Field + " " + v.Message
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
