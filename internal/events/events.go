package events

import (
	"encoding/json"
	"sync"
	"time"

	"toursync/internal/models"
)

const (
	EventBookingQueued    = "booking_queued"
	EventBookingCommitted = "booking_committed"
	EventBookingFailed    = "booking_failed"
	EventSyncCompleted    = "sync_completed"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  int64   `json:"booking_id"`
	ResourceID string  `json:"resource_id"`
	OwnerID    string  `json:"owner_id"`
	Units      int     `json:"units"`
	Amount     float64 `json:"amount"`
	InvoiceID  string  `json:"invoice_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// SyncEventPayload carries the aggregate result of one completed run.
type SyncEventPayload struct {
	Result     models.BatchResult `json:"result"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// Unmarshal decodes an event payload into v.
func Unmarshal(event *Event, v interface{}) error {
	return json.Unmarshal(event.Payload, v)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
