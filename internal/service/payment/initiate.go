package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/processor"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
)

type InitiateRequest struct {
	BookingReference string
	Amount           decimal.Decimal
	Currency         string
	Email            string
	FirstName        string
	LastName         string
}

type InitiateResult struct {
	Payment           *domain.Payment
	MerchantReference string
	CheckoutURL       string
	ProcessorResponse json.RawMessage
}

func (r InitiateRequest) Validate() error {
	var violations []domain.FieldViolation

	if strings.TrimSpace(r.BookingReference) == "" {
		violations = append(violations, domain.FieldViolation{Field: "booking_reference", Message: "required"})
	}
	if !r.Amount.IsPositive() {
		violations = append(violations, domain.FieldViolation{Field: "amount", Message: "must be greater than 0"})
	}
	if strings.TrimSpace(r.Email) == "" {
		violations = append(violations, domain.FieldViolation{Field: "email", Message: "required"})
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		violations = append(violations, domain.FieldViolation{Field: "email", Message: "must be a valid email address"})
	}

	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}

// Initiate creates a PENDING payment and opens a hosted checkout for it. When the
// processor cannot be reached the payment is marked FAILED and the transport
// error is returned.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	log := logging.FromContext(ctx)

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	p, err := s.createPayment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}
	lookup := domain.ByMerchantReference(p.MerchantReference)

	resp, err := s.processor.Initialize(ctx, processor.InitializeRequest{
		MerchantReference: p.MerchantReference,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Email:             strings.TrimSpace(req.Email),
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		CallbackURL:       s.config.PaymentCallbackURL,
		ReturnURL:         s.config.PaymentReturnURL,
		Description:       "Payment for booking " + p.BookingReference,
	})
	if err != nil {
		raw, _ := json.Marshal(map[string]string{"error": err.Error()})
		// Runs even if the request context is already cancelled.
		if _, markErr := s.engine.MarkFailed(context.WithoutCancel(ctx), lookup, raw); markErr != nil {
			log.Error("failed to mark payment failed after initialize error",
				"merchant_reference", p.MerchantReference,
				"error", markErr,
			)
		}
		return nil, fmt.Errorf("Initiate: %s: %w", p.MerchantReference, err)
	}

	out, err := s.engine.Record(ctx, lookup, reconcile.Observation{
		Channel:                domain.ChannelInitiate,
		Signal:                 domain.ClassifyStatus(resp.Status),
		Raw:                    resp.Raw,
		ProcessorTransactionID: resp.TransactionID,
	})
	if err != nil {
		return nil, fmt.Errorf("Initiate: %w", err)
	}

	log.Info("payment initiated",
		"merchant_reference", p.MerchantReference,
		"booking_reference", p.BookingReference,
		"amount", p.Amount.StringFixed(2),
		"currency", p.Currency,
	)

	return &InitiateResult{
		Payment:           out.Payment,
		MerchantReference: p.MerchantReference,
		CheckoutURL:       resp.CheckoutURL,
		ProcessorResponse: resp.Raw,
	}, nil
}

func (s *Service) createPayment(ctx context.Context, req InitiateRequest) (*domain.Payment, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency()
	}
	bookingRef := strings.TrimSpace(req.BookingReference)

	for attempt := 1; ; attempt++ {
		now := time.Now().UTC()
		p := &domain.Payment{
			ID:                uuid.New(),
			MerchantReference: s.newReference(bookingRef),
			BookingReference:  bookingRef,
			Amount:            req.Amount,
			Currency:          currency,
			State:             domain.PaymentStatePending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		err := s.payments.Create(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrDuplicateReference) || attempt >= maxReferenceAttempts {
			return nil, fmt.Errorf("createPayment: %w", err)
		}
		logging.FromContext(ctx).Warn("merchant reference collision, regenerating",
			"merchant_reference", p.MerchantReference,
			"attempt", attempt,
		)
	}
}

func (s *Service) defaultCurrency() string {
	if s.config != nil && s.config.DefaultCurrency != "" {
		return s.config.DefaultCurrency
	}
	return domain.DefaultCurrency
}
