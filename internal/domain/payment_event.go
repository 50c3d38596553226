package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SignalTransportError marks an audit entry written because the processor could not be reached.
const SignalTransportError StatusSignal = "transport_error"

type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Channel   Channel
	Signal    StatusSignal
	FromState PaymentState
	ToState   PaymentState
	Payload   json.RawMessage
	CreatedAt time.Time
}
