package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/booking-payments/internal/repository"
	"github.com/josh-kwaku/booking-payments/internal/testutil"
)

func TestIdempotencyRepository_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	rec, err := repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	won, err := repo.Reserve(ctx, "key-1", "hash-a", expires)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Reserve(ctx, "key-1", "hash-a", expires)
	require.NoError(t, err)
	assert.False(t, won, "live reservation must not be taken twice")

	rec, err = repo.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.InFlight())
	assert.Equal(t, "hash-a", rec.RequestHash)

	require.NoError(t, repo.Complete(ctx, "key-1", 200, []byte(`{"success":true}`)))

	rec, err = repo.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.InFlight())
	assert.Equal(t, 200, rec.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(rec.ResponseBody))

	// Completed records survive Release.
	require.NoError(t, repo.Release(ctx, "key-1"))
	rec, err = repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestIdempotencyRepository_ReleaseFreesKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	won, err := repo.Reserve(ctx, "key-2", "hash-a", expires)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, repo.Release(ctx, "key-2"))

	won, err = repo.Reserve(ctx, "key-2", "hash-b", expires)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestIdempotencyRepository_ExpiredRecords(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	won, err := repo.Reserve(ctx, "old", "hash-a", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, won)

	rec, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, rec, "expired records are invisible")

	won, err = repo.Reserve(ctx, "old", "hash-b", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, won, "expired record is taken over")

	_, err = repo.Reserve(ctx, "stale", "hash-c", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	n, err := repo.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
