package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/repository"
)

type paymentRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, lookup domain.PaymentLookup) (*domain.Payment, error)
	Save(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.PaymentEvent) error
}

// Notifier is told about payments that just reached COMPLETED.
type Notifier interface {
	PaymentCompleted(ctx context.Context, payment *domain.Payment, channel domain.Channel) error
}

// Observation is one status reading from the processor, via any channel.
type Observation struct {
	Channel                domain.Channel
	Signal                 domain.StatusSignal
	Raw                    json.RawMessage
	ProcessorTransactionID string
}

type Outcome struct {
	Payment      *domain.Payment
	From         domain.PaymentState
	To           domain.PaymentState
	Transitioned bool
}

type Engine struct {
	db       *sql.DB
	payments paymentRepo
	events   eventRepo
	notifier Notifier
	logger   *slog.Logger
}

// NewEngine builds an engine. notifier may be nil.
func NewEngine(db *sql.DB, payments paymentRepo, events eventRepo, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		db:       db,
		payments: payments,
		events:   events,
		notifier: notifier,
		logger:   logger,
	}
}

// Reconcile applies obs to the payment under a row lock. The raw document always
// replaces LastRawResponse; the state only moves along the transition table.
func (e *Engine) Reconcile(ctx context.Context, lookup domain.PaymentLookup, obs Observation) (*Outcome, error) {
	out, err := e.apply(ctx, lookup, obs, func(p *domain.Payment) domain.PaymentState {
		return p.State.Next(obs.Signal)
	})
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	return out, nil
}

// Record stores the raw document and processor id without touching the state.
func (e *Engine) Record(ctx context.Context, lookup domain.PaymentLookup, obs Observation) (*Outcome, error) {
	out, err := e.apply(ctx, lookup, obs, func(p *domain.Payment) domain.PaymentState {
		return p.State
	})
	if err != nil {
		return nil, fmt.Errorf("Record: %w", err)
	}
	return out, nil
}

// MarkFailed moves a PENDING payment to FAILED after the processor could not be
// reached during initiation. Terminal payments are left as they are.
func (e *Engine) MarkFailed(ctx context.Context, lookup domain.PaymentLookup, raw json.RawMessage) (*Outcome, error) {
	obs := Observation{
		Channel: domain.ChannelInitiate,
		Signal:  domain.SignalTransportError,
		Raw:     raw,
	}
	out, err := e.apply(ctx, lookup, obs, func(p *domain.Payment) domain.PaymentState {
		if p.State == domain.PaymentStatePending {
			return domain.PaymentStateFailed
		}
		return p.State
	})
	if err != nil {
		return nil, fmt.Errorf("MarkFailed: %w", err)
	}
	return out, nil
}

func (e *Engine) apply(
	ctx context.Context,
	lookup domain.PaymentLookup,
	obs Observation,
	next func(p *domain.Payment) domain.PaymentState,
) (*Outcome, error) {
	log := logging.FromContext(ctx)

	out, err := e.write(ctx, lookup, obs, next, true)
	if errors.Is(err, domain.ErrProcessorIDConflict) {
		// The write rolled back; apply the signal again without the id.
		log.Warn("processor transaction id already held by another payment, not adopting",
			"lookup", lookup.String(),
			"processor_tx_id", obs.ProcessorTransactionID,
			"channel", obs.Channel,
		)
		out, err = e.write(ctx, lookup, obs, next, false)
	}
	if err != nil {
		return nil, err
	}

	if out.Transitioned {
		log.Info("payment state changed",
			"merchant_reference", out.Payment.MerchantReference,
			"channel", obs.Channel,
			"from_state", out.From,
			"to_state", out.To,
		)
	} else {
		log.Debug("payment state unchanged",
			"merchant_reference", out.Payment.MerchantReference,
			"channel", obs.Channel,
			"signal", obs.Signal,
			"state", out.To,
		)
	}

	if out.Transitioned && out.To == domain.PaymentStateCompleted {
		e.notifyCompleted(ctx, out.Payment, obs.Channel)
	}

	return out, nil
}

func (e *Engine) write(
	ctx context.Context,
	lookup domain.PaymentLookup,
	obs Observation,
	next func(p *domain.Payment) domain.PaymentState,
	adopt bool,
) (*Outcome, error) {
	var out Outcome
	err := repository.InTx(ctx, e.db, func(tx *sql.Tx) error {
		p, err := e.payments.GetForUpdate(ctx, tx, lookup)
		if err != nil {
			return err
		}

		from := p.State
		to := next(p)
		now := time.Now().UTC()

		p.State = to
		if len(obs.Raw) > 0 {
			p.LastRawResponse = obs.Raw
		}
		if adopt {
			p.AdoptProcessorTransactionID(obs.ProcessorTransactionID)
		}
		p.Version++
		p.UpdatedAt = now

		if err := e.payments.Save(ctx, tx, p); err != nil {
			return err
		}

		event := &domain.PaymentEvent{
			ID:        uuid.New(),
			PaymentID: p.ID,
			Channel:   obs.Channel,
			Signal:    obs.Signal,
			FromState: from,
			ToState:   to,
			Payload:   obs.Raw,
			CreatedAt: now,
		}
		if err := e.events.Create(ctx, tx, event); err != nil {
			return err
		}

		out = Outcome{Payment: p, From: from, To: to, Transitioned: from != to}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *Engine) notifyCompleted(ctx context.Context, p *domain.Payment, channel domain.Channel) {
	if e.notifier == nil {
		return
	}
	// Runs even if the caller's context is cancelled after commit.
	if err := e.notifier.PaymentCompleted(context.WithoutCancel(ctx), p, channel); err != nil {
		e.logger.Error("payment completed notification failed",
			"merchant_reference", p.MerchantReference,
			"error", err,
		)
	}
}
