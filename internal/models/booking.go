package models

import (
	"encoding/json"
	"time"
)

// PendingBooking is a durable record of a booking that has not yet been
// committed to the remote store. Terminal success is modeled by deletion.
type PendingBooking struct {
	ID          int64     `json:"id"`
	ResourceID  string    `json:"resource_id"`
	Units       int       `json:"units"`
	Payload     []byte    `json:"payload"`
	OwnerID     string    `json:"owner_id"`
	TotalAmount float64   `json:"total_amount"`
	Status      string    `json:"status"` // pending, failed, dead
	RetryCount  int       `json:"retry_count"`
	LastError   *string   `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
}

// BookingPayload is the decoded form of PendingBooking.Payload. The queue
// stores it as an opaque blob; only the remote protocol interprets it.
type BookingPayload struct {
	TourTitle string  `json:"tour_title"`
	TourImage string  `json:"tour_image,omitempty"`
	TourPrice float64 `json:"tour_price"`
	Contact   Contact `json:"contact"`
	Guests    []Guest `json:"guests"`
}

type Contact struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type Guest struct {
	FullName string `json:"full_name"`
	Age      int    `json:"age,omitempty"`
}

// DecodePayload parses the stored payload blob.
func (b *PendingBooking) DecodePayload() (*BookingPayload, error) {
	var p BookingPayload
	if err := json.Unmarshal(b.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
