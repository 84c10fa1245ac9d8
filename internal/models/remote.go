package models

import "time"

// Resource is the remote capacity-constrained entity a booking consumes
// units of. Only Remaining is mutated, and only inside the commit
// transaction.
type Resource struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Remaining int64  `json:"remaining"`
}

// CheckoutRecord mirrors the remote checkout document created on commit.
type CheckoutRecord struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	PaymentDate   time.Time `json:"payment_date"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	InvoiceID     string    `json:"invoice_id"`
	BookingRef    int64     `json:"booking_ref"`
}

// InvoiceRecord mirrors the remote invoice document. Checkout and invoice
// reference each other by plain identifiers, both written within the same
// transaction.
type InvoiceRecord struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	DateIssued    time.Time `json:"date_issued"`
	CheckoutID    string    `json:"checkout_id"`
	PaymentStatus string    `json:"payment_status"`
	OwnerID       string    `json:"owner_id"`
	Details       string    `json:"details"`
}

// CommitResult is returned by a successful remote transaction.
type CommitResult struct {
	CheckoutID string
	InvoiceID  string
}
