package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/booking-payments/internal/config"
	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/processor"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
)

const maxReferenceAttempts = 3

type paymentRepo interface {
	Create(ctx context.Context, payment *domain.Payment) error
	Find(ctx context.Context, lookup domain.PaymentLookup) (*domain.Payment, error)
}

type eventRepo interface {
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error)
}

type processorClient interface {
	Initialize(ctx context.Context, req processor.InitializeRequest) (*processor.Response, error)
	Verify(ctx context.Context, lookup domain.PaymentLookup) (*processor.Response, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, lookup domain.PaymentLookup, obs reconcile.Observation) (*reconcile.Outcome, error)
	Record(ctx context.Context, lookup domain.PaymentLookup, obs reconcile.Observation) (*reconcile.Outcome, error)
	MarkFailed(ctx context.Context, lookup domain.PaymentLookup, raw json.RawMessage) (*reconcile.Outcome, error)
}

type Service struct {
	payments  paymentRepo
	events    eventRepo
	processor processorClient
	engine    reconciler
	config    *config.Config

	newReference func(bookingRef string) string
}

func NewService(
	payments paymentRepo,
	events eventRepo,
	processor processorClient,
	engine reconciler,
	cfg *config.Config,
) *Service {
	return &Service{
		payments:     payments,
		events:       events,
		processor:    processor,
		engine:       engine,
		config:       cfg,
		newReference: NewMerchantReference,
	}
}

// NewMerchantReference returns bookingRef followed by eight random hex digits.
func NewMerchantReference(bookingRef string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return bookingRef + "-" + suffix
}

func (s *Service) Get(ctx context.Context, lookup domain.PaymentLookup) (*domain.Payment, error) {
	p, err := s.payments.Find(ctx, lookup)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

// History returns the payment and every reconciliation applied to it, oldest first.
func (s *Service) History(ctx context.Context, lookup domain.PaymentLookup) (*domain.Payment, []domain.PaymentEvent, error) {
	p, err := s.payments.Find(ctx, lookup)
	if err != nil {
		return nil, nil, fmt.Errorf("History: %w", err)
	}
	events, err := s.events.GetByPaymentID(ctx, p.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("History: %w", err)
	}
	return p, events, nil
}
