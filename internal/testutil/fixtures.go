package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/booking-payments/internal/domain"
)

func SeedPayment(t *testing.T, db *sql.DB, merchantRef string, state domain.PaymentState) *domain.Payment {
	t.Helper()

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:                uuid.New(),
		MerchantReference: merchantRef,
		BookingReference:  "BK-SEED",
		Amount:            decimal.NewFromInt(100),
		Currency:          domain.DefaultCurrency,
		State:             state,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := db.Exec(
		`INSERT INTO payments (id, merchant_reference, booking_reference, amount, currency, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.MerchantReference, p.BookingReference, p.Amount, p.Currency, p.State, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment %s: %v", merchantRef, err)
	}
	return p
}

func GetPaymentState(t *testing.T, db *sql.DB, merchantRef string) domain.PaymentState {
	t.Helper()

	var state domain.PaymentState
	err := db.QueryRow(`SELECT state FROM payments WHERE merchant_reference = $1`, merchantRef).Scan(&state)
	if err != nil {
		t.Fatalf("get payment state %s: %v", merchantRef, err)
	}
	return state
}

func GetLastRawResponse(t *testing.T, db *sql.DB, merchantRef string) map[string]any {
	t.Helper()

	var raw []byte
	err := db.QueryRow(`SELECT last_raw_response FROM payments WHERE merchant_reference = $1`, merchantRef).Scan(&raw)
	if err != nil {
		t.Fatalf("get last raw response %s: %v", merchantRef, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode last raw response %s: %v", merchantRef, err)
	}
	return doc
}

func CountPayments(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM payments`).Scan(&count); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return count
}

func CountPaymentEvents(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM payment_events WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count payment events for payment %s: %v", paymentID, err)
	}
	return count
}
