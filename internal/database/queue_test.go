package database

import (
	"context"
	"os"
	"testing"
	"time"

	"toursync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func testBooking(resourceID string, units int) *models.PendingBooking {
	return &models.PendingBooking{
		ResourceID:  resourceID,
		Units:       units,
		Payload:     []byte(`{"tour_title":"Halong Bay","contact":{"full_name":"A"},"guests":[{"full_name":"A"}]}`),
		OwnerID:     "user-1",
		TotalAmount: 120.50,
	}
}

func TestEnqueueAndCount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	count, err := db.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	b := testBooking("tour-1", 2)
	id, err := db.Enqueue(ctx, b)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, 0, b.RetryCount)
	assert.False(t, b.CreatedAt.IsZero())

	count, err = db.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := db.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tour-1", got.ResourceID)
	assert.Equal(t, 2, got.Units)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.InDelta(t, 120.50, got.TotalAmount, 0.001)
	assert.JSONEq(t, string(b.Payload), string(got.Payload))
	assert.Nil(t, got.LastError)
}

func TestListPendingFIFO(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := db.Enqueue(ctx, testBooking("tour-1", 1))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	pending, err := db.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	// Oldest first.
	assert.True(t, pending[0].CreatedAt.Before(pending[2].CreatedAt) ||
		pending[0].CreatedAt.Equal(pending[2].CreatedAt))
	assert.Less(t, pending[0].ID, pending[1].ID)
	assert.Less(t, pending[1].ID, pending[2].ID)
}

func TestMarkFailedAndRetryCeiling(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	id, err := db.Enqueue(ctx, testBooking("tour-1", 1))
	require.NoError(t, err)

	err = db.MarkFailed(ctx, id, "remote store unavailable: dial tcp")
	require.NoError(t, err)

	// No longer pending.
	pending, err := db.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := db.ListFailed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, models.StatusFailed, failed[0].Status)
	assert.Equal(t, 1, failed[0].RetryCount)
	require.NotNil(t, failed[0].LastError)
	assert.Contains(t, *failed[0].LastError, "unavailable")

	// Two more failures hit the ceiling.
	require.NoError(t, db.MarkFailed(ctx, id, "again"))
	require.NoError(t, db.MarkFailed(ctx, id, "again"))

	failed, err = db.ListFailed(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, failed, "record at the retry ceiling must be excluded")

	// Explicit reset puts it back in play.
	require.NoError(t, db.ResetForRetry(ctx, id))

	got, err := db.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.LastError)
}

func TestMarkDeadExcludedFromRetry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	id, err := db.Enqueue(ctx, testBooking("tour-1", 1))
	require.NoError(t, err)

	err = db.MarkDead(ctx, id, "invalid booking: malformed payload")
	require.NoError(t, err)

	failed, err := db.ListFailed(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, failed)

	dead, err := db.ListDead(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, models.StatusDead, dead[0].Status)

	require.NoError(t, db.ResetForRetry(ctx, id))
	pending, err := db.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	id, err := db.Enqueue(ctx, testBooking("tour-1", 1))
	require.NoError(t, err)

	require.NoError(t, db.Delete(ctx, id))

	_, err = db.GetBooking(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := db.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Deleting twice reports not found.
	assert.ErrorIs(t, db.Delete(ctx, id), ErrNotFound)
}

func TestMutationsOnMissingRecord(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	assert.ErrorIs(t, db.MarkFailed(ctx, 42, "nope"), ErrNotFound)
	assert.ErrorIs(t, db.MarkDead(ctx, 42, "nope"), ErrNotFound)
	assert.ErrorIs(t, db.ResetForRetry(ctx, 42), ErrNotFound)
}
