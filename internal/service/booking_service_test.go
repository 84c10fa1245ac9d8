package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"toursync/internal/database"
	"toursync/internal/events"
	"toursync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*BookingService, *database.DB, *events.EventBus) {
	logger := zerolog.New(os.Stdout)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	return NewBookingService(db, bus, &logger), db, bus
}

func testRequest() BookingRequest {
	return BookingRequest{
		ResourceID:  "tour-y",
		OwnerID:     "user-1",
		TotalAmount: 150.0,
		Payload: models.BookingPayload{
			TourTitle: "Tour Y",
			TourPrice: 50.0,
			Contact:   models.Contact{FullName: "An Nguyen", Email: "an@example.com", Phone: "555-0103"},
			Guests: []models.Guest{
				{FullName: "An Nguyen", Age: 34},
				{FullName: "Bao Nguyen", Age: 31},
				{FullName: "Chi Nguyen", Age: 6},
			},
		},
	}
}

func TestEnqueueStoresBooking(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, testRequest())
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	booking, err := db.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tour-y", booking.ResourceID)
	assert.Equal(t, 3, booking.Units)
	assert.Equal(t, models.StatusPending, booking.Status)

	payload, err := booking.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, "Tour Y", payload.TourTitle)
	assert.Len(t, payload.Guests, 3)
}

func TestEnqueueValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	noResource := testRequest()
	noResource.ResourceID = ""
	_, err := svc.Enqueue(ctx, noResource)
	assert.ErrorIs(t, err, ErrNoResource)

	noOwner := testRequest()
	noOwner.OwnerID = ""
	_, err = svc.Enqueue(ctx, noOwner)
	assert.ErrorIs(t, err, ErrNoOwner)

	noGuests := testRequest()
	noGuests.Payload.Guests = nil
	_, err = svc.Enqueue(ctx, noGuests)
	assert.ErrorIs(t, err, ErrNoGuests)

	count, err := svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEnqueuePublishesEvent(t *testing.T) {
	svc, _, bus := setupService(t)
	ctx := context.Background()

	var mu sync.Mutex
	var received []*events.Event
	bus.Subscribe(events.EventBookingQueued, func(event *events.Event) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		return nil
	})

	id, err := svc.Enqueue(ctx, testRequest())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)

	var payload events.BookingEventPayload
	require.NoError(t, events.Unmarshal(received[0], &payload))
	assert.Equal(t, id, payload.BookingID)
	assert.Equal(t, "tour-y", payload.ResourceID)
	assert.Equal(t, 3, payload.Units)
}

func TestResetForRetry(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, testRequest())
	require.NoError(t, err)
	require.NoError(t, db.MarkFailed(ctx, id, "insufficient capacity: 0 remaining, 3 requested"))

	failed, err := svc.ListFailed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	require.NoError(t, svc.ResetForRetry(ctx, id))

	booking, err := db.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Nil(t, booking.LastError)

	// Unknown id surfaces the storage sentinel.
	assert.ErrorIs(t, svc.ResetForRetry(ctx, 999), database.ErrNotFound)
}
