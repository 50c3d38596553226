package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/booking-payments/internal/domain"
)

const paymentColumns = `id, merchant_reference, processor_tx_id, booking_reference,
	amount, currency, state, last_raw_response, version, created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (
			id, merchant_reference, processor_tx_id, booking_reference,
			amount, currency, state, last_raw_response, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		payment.ID, payment.MerchantReference, payment.ProcessorTransactionID, payment.BookingReference,
		payment.Amount, payment.Currency, payment.State, jsonParam(payment.LastRawResponse),
		payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "payments_merchant_reference_key") {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateReference)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Find(ctx context.Context, lookup domain.PaymentLookup) (*domain.Payment, error) {
	where, err := lookupClause(lookup)
	if err != nil {
		return nil, fmt.Errorf("Find: %w", err)
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+where, lookup.Value(),
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Find: %s: %w", lookup, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Find: %w", err)
	}
	return p, nil
}

// GetForUpdate locks the row until tx ends, serializing reconciliation per payment.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, lookup domain.PaymentLookup) (*domain.Payment, error) {
	where, err := lookupClause(lookup)
	if err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+where+` FOR UPDATE`, lookup.Value(),
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %s: %w", lookup, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

// Save writes the mutable fields. payment.Version must already hold the new version.
func (r *PaymentRepository) Save(ctx context.Context, tx *sql.Tx, payment *domain.Payment) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments
		SET processor_tx_id = $1, state = $2, last_raw_response = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7`,
		payment.ProcessorTransactionID, payment.State, jsonParam(payment.LastRawResponse),
		payment.Version, payment.UpdatedAt, payment.ID, payment.Version-1,
	)
	if err != nil {
		if isUniqueViolation(err, "payments_processor_tx_id_key") {
			return fmt.Errorf("Save: %w", domain.ErrProcessorIDConflict)
		}
		return fmt.Errorf("Save: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Save: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Save: %w", domain.ErrVersionConflict)
	}
	return nil
}

func lookupClause(lookup domain.PaymentLookup) (string, error) {
	if !lookup.Valid() {
		return "", domain.ErrAmbiguousIdentifier
	}
	switch lookup.Kind() {
	case domain.LookupMerchantReference:
		return "merchant_reference = $1", nil
	case domain.LookupProcessorTransactionID:
		return "processor_tx_id = $1", nil
	default:
		return "", domain.ErrAmbiguousIdentifier
	}
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var raw *[]byte

	err := s.Scan(
		&p.ID, &p.MerchantReference, &p.ProcessorTransactionID, &p.BookingReference,
		&p.Amount, &p.Currency, &p.State, &raw, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if raw != nil {
		p.LastRawResponse = json.RawMessage(*raw)
	}
	return &p, nil
}

// jsonParam passes JSON as text; lib/pq would otherwise encode []byte as bytea.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return constraint == "" || pqErr.Constraint == constraint
	}
	return false
}
