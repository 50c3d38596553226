package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "ETB"

type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateCompleted PaymentState = "completed"
	PaymentStateFailed    PaymentState = "failed"
)

func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateCompleted || s == PaymentStateFailed
}

// Next returns the state reached from s on signal. Terminal states absorb every signal.
func (s PaymentState) Next(signal StatusSignal) PaymentState {
	if s != PaymentStatePending {
		return s
	}
	switch signal {
	case SignalSuccess:
		return PaymentStateCompleted
	case SignalFailedOrCancelled:
		return PaymentStateFailed
	default:
		return s
	}
}

type Payment struct {
	ID                     uuid.UUID
	MerchantReference      string
	ProcessorTransactionID *string
	BookingReference       string
	Amount                 decimal.Decimal
	Currency               string
	State                  PaymentState
	LastRawResponse        json.RawMessage
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// AdoptProcessorTransactionID sets the processor id only if none is known yet.
func (p *Payment) AdoptProcessorTransactionID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || (p.ProcessorTransactionID != nil && *p.ProcessorTransactionID != "") {
		return false
	}
	p.ProcessorTransactionID = &id
	return true
}
