package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/processor"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
)

type CallbackResult struct {
	Payment *domain.Payment
	Outcome *reconcile.Outcome
}

// HandleCallback reconciles a processor webhook. Any found payment is acknowledged,
// whether or not its state moved.
func (s *Service) HandleCallback(ctx context.Context, raw json.RawMessage) (*CallbackResult, error) {
	doc, err := processor.ParseCallback(raw)
	if err != nil {
		return nil, fmt.Errorf("HandleCallback: %w", &domain.ValidationError{
			Violations: []domain.FieldViolation{{Field: "body", Message: "must be a JSON object"}},
		})
	}
	if doc.Reference == "" {
		return nil, fmt.Errorf("HandleCallback: %w", &domain.ValidationError{
			Violations: []domain.FieldViolation{{Field: "tx_ref", Message: "required"}},
		})
	}

	ctx = logging.With(ctx, "tx_ref", doc.Reference)
	out, err := s.engine.Reconcile(ctx, domain.ByMerchantReference(doc.Reference), reconcile.Observation{
		Channel:                domain.ChannelWebhook,
		Signal:                 domain.ClassifyStatus(doc.Status),
		Raw:                    doc.Raw,
		ProcessorTransactionID: doc.TransactionID,
	})
	if err != nil {
		return nil, fmt.Errorf("HandleCallback: %w", err)
	}

	return &CallbackResult{Payment: out.Payment, Outcome: out}, nil
}
