package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/booking-payments/internal/domain"
)

const RoutingKeyPaymentCompleted = "payment.completed"

type PaymentCompleted struct {
	Event   string               `json:"event"`
	Version int                  `json:"version"`
	Data    PaymentCompletedData `json:"data"`
}

type PaymentCompletedData struct {
	PaymentID              uuid.UUID       `json:"payment_id"`
	MerchantReference      string          `json:"tx_ref"`
	BookingReference       string          `json:"booking_reference"`
	ProcessorTransactionID string          `json:"processor_tx_id,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	Channel                domain.Channel  `json:"channel"`
	CompletedAt            time.Time       `json:"completed_at"`
}

func NewPaymentCompleted(p *domain.Payment, channel domain.Channel) PaymentCompleted {
	data := PaymentCompletedData{
		PaymentID:         p.ID,
		MerchantReference: p.MerchantReference,
		BookingReference:  p.BookingReference,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Channel:           channel,
		CompletedAt:       p.UpdatedAt,
	}
	if p.ProcessorTransactionID != nil {
		data.ProcessorTransactionID = *p.ProcessorTransactionID
	}
	return PaymentCompleted{Event: RoutingKeyPaymentCompleted, Version: 1, Data: data}
}
