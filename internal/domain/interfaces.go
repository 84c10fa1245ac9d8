package domain

import (
	"context"

	"toursync/internal/models"
)

// Queue is the durable local store of not-yet-committed bookings.
type Queue interface {
	Enqueue(ctx context.Context, booking *models.PendingBooking) (int64, error)
	ListPending(ctx context.Context) ([]models.PendingBooking, error)
	ListFailed(ctx context.Context, maxRetry int) ([]models.PendingBooking, error)
	MarkFailed(ctx context.Context, id int64, reason string) error
	MarkDead(ctx context.Context, id int64, reason string) error
	ResetForRetry(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	CountPending(ctx context.Context) (int, error)
}

// Committer runs the atomic remote transaction for one booking.
type Committer interface {
	CommitBooking(ctx context.Context, booking *models.PendingBooking) (*models.CommitResult, error)
}

// Monitor reports current network reachability.
type Monitor interface {
	IsOnline(ctx context.Context) bool
}

// Syncer drains the queue against the remote store.
type Syncer interface {
	RunOnce(ctx context.Context) (models.BatchResult, error)
	TriggerNow(ctx context.Context) (models.BatchResult, error)
}

// EventPublisher decouples engine packages from the event bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
