package models

// SyncSuccess describes one booking committed during a sync run.
type SyncSuccess struct {
	BookingID int64  `json:"booking_id"`
	TourTitle string `json:"tour_title"`
	InvoiceID string `json:"invoice_id"`
}

// SyncFailure describes one booking that failed during a sync run.
type SyncFailure struct {
	BookingID int64  `json:"booking_id"`
	Reason    string `json:"reason"`
}

// BatchResult aggregates the outcome of one sync run. Both lists empty
// means the run had nothing to do (or was skipped).
type BatchResult struct {
	Succeeded []SyncSuccess `json:"succeeded"`
	Failed    []SyncFailure `json:"failed"`
}

// Empty reports whether the run produced no outcomes worth surfacing.
func (r BatchResult) Empty() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) == 0
}
