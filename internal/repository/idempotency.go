package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IdempotencyRecord is one Idempotency-Key claim. StatusCode stays 0 while the
// request that reserved the key is still running.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (r *IdempotencyRecord) InFlight() bool { return r.StatusCode == 0 }

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns the live record for key, or nil if there is none.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var status sql.NullInt32
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, request_hash, status_code, response_body, created_at, expires_at
		FROM idempotency_cache
		WHERE idempotency_key = $1 AND expires_at > now()`,
		key,
	).Scan(&rec.Key, &rec.RequestHash, &status, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	rec.StatusCode = int(status.Int32)
	return &rec, nil
}

// Reserve claims key for a request with the given hash. It reports false when a
// live record already holds the key; an expired one is taken over.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, request_hash, created_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			status_code = NULL,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_cache.expires_at <= now()`,
		key, requestHash, expiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Reserve: rows affected: %w", err)
	}
	return n == 1, nil
}

// Complete stores the response of the request that reserved key.
func (r *IdempotencyRepository) Complete(ctx context.Context, key string, statusCode int, body []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_cache SET status_code = $2, response_body = $3
		WHERE idempotency_key = $1 AND status_code IS NULL`,
		key, statusCode, body,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

// Release drops an unfinished reservation so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE idempotency_key = $1 AND status_code IS NULL`,
		key,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}
