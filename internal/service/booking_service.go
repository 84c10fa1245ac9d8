package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/metrics"
	"toursync/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrNoGuests   = errors.New("booking must have at least one guest")
	ErrNoResource = errors.New("booking must reference a resource")
	ErrNoOwner    = errors.New("booking must have an owner")
)

// BookingService is the surface UI glue calls into: enqueue a booking
// (always works, offline or online) and read queue status. Display of
// sync results stays with the caller.
type BookingService struct {
	queue  domain.Queue
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewBookingService(queue domain.Queue, bus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{queue: queue, bus: bus, logger: logger}
}

// BookingRequest is what the submission flow hands over when the app is
// offline or the user chose deferred payment.
type BookingRequest struct {
	ResourceID  string
	OwnerID     string
	TotalAmount float64
	Payload     models.BookingPayload
}

// Enqueue validates and persists the booking locally. It never fails for
// connectivity reasons; only a fatal storage error propagates.
func (s *BookingService) Enqueue(ctx context.Context, req BookingRequest) (int64, error) {
	if req.ResourceID == "" {
		return 0, ErrNoResource
	}
	if req.OwnerID == "" {
		return 0, ErrNoOwner
	}
	if len(req.Payload.Guests) == 0 {
		return 0, ErrNoGuests
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}

	// One capacity unit per guest.
	booking := &models.PendingBooking{
		ResourceID:  req.ResourceID,
		Units:       len(req.Payload.Guests),
		Payload:     payload,
		OwnerID:     req.OwnerID,
		TotalAmount: req.TotalAmount,
	}

	id, err := s.queue.Enqueue(ctx, booking)
	if err != nil {
		return 0, fmt.Errorf("enqueue booking: %w", err)
	}

	s.logger.Info().Int64("booking_id", id).Str("resource_id", req.ResourceID).
		Int("units", booking.Units).Msg("Booking queued")

	if count, countErr := s.queue.CountPending(ctx); countErr == nil {
		metrics.SetPendingBacklog(count)
	}

	_ = s.bus.PublishJSON(events.EventBookingQueued, events.BookingEventPayload{
		BookingID:  id,
		ResourceID: req.ResourceID,
		OwnerID:    req.OwnerID,
		Units:      booking.Units,
		Amount:     req.TotalAmount,
	})

	return id, nil
}

// CountPending backs the status-indicator badge.
func (s *BookingService) CountPending(ctx context.Context) (int, error) {
	return s.queue.CountPending(ctx)
}

// ListFailed returns retryable failed bookings for display.
func (s *BookingService) ListFailed(ctx context.Context, maxRetry int) ([]models.PendingBooking, error) {
	return s.queue.ListFailed(ctx, maxRetry)
}

// ResetForRetry puts a failed booking back into the automatic queue.
// Explicit user action, never done automatically.
func (s *BookingService) ResetForRetry(ctx context.Context, id int64) error {
	if err := s.queue.ResetForRetry(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("booking_id", id).Msg("Booking reset for retry")
	return nil
}
