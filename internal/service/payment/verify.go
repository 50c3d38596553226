package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
)

type VerifyResult struct {
	ProcessorResponse json.RawMessage
	// Payment is nil when no local record matches the lookup.
	Payment *domain.Payment
	Outcome *reconcile.Outcome
}

// Verify pulls the current status from the processor and reconciles it. A miss by
// merchant reference still returns the processor's answer; a miss by processor
// transaction id is ErrNotFound.
func (s *Service) Verify(ctx context.Context, lookup domain.PaymentLookup) (*VerifyResult, error) {
	if !lookup.Valid() {
		return nil, fmt.Errorf("Verify: %w", domain.ErrAmbiguousIdentifier)
	}

	ctx = logging.With(ctx, "lookup", lookup.String())
	resp, err := s.processor.Verify(ctx, lookup)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	out, err := s.engine.Reconcile(ctx, lookup, reconcile.Observation{
		Channel:                domain.ChannelVerify,
		Signal:                 domain.ClassifyStatus(resp.Status),
		Raw:                    resp.Raw,
		ProcessorTransactionID: resp.TransactionID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result := &VerifyResult{ProcessorResponse: resp.Raw}
			if lookup.Kind() == domain.LookupProcessorTransactionID {
				return result, fmt.Errorf("Verify: %w", err)
			}
			return result, nil
		}
		return nil, fmt.Errorf("Verify: %w", err)
	}

	return &VerifyResult{
		ProcessorResponse: resp.Raw,
		Payment:           out.Payment,
		Outcome:           out,
	}, nil
}
