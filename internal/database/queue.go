package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"toursync/internal/models"
)

const bookingColumns = `id, resource_id, units, payload, owner_id, total_amount, status, retry_count, last_error, created_at`

// Enqueue appends a booking with status pending. It only fails on a fatal
// storage error; connectivity never matters here.
func (db *DB) Enqueue(ctx context.Context, booking *models.PendingBooking) (int64, error) {
	query := `INSERT INTO pending_bookings (resource_id, units, payload, owner_id, total_amount, status, retry_count, created_at)
              VALUES (?, ?, ?, ?, ?, ?, 0, ?)`
	now := time.Now().UTC()
	result, err := db.db.ExecContext(ctx, query,
		booking.ResourceID,
		booking.Units,
		string(booking.Payload),
		booking.OwnerID,
		booking.TotalAmount,
		models.StatusPending,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.Status = models.StatusPending
	booking.RetryCount = 0
	booking.CreatedAt = now

	return id, nil
}

// ListPending returns pending bookings oldest first. Draining in this
// order keeps FIFO fairness for starved requests.
func (db *DB) ListPending(ctx context.Context) ([]models.PendingBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM pending_bookings
              WHERE status = ? ORDER BY created_at ASC, id ASC`
	return db.queryBookings(ctx, query, models.StatusPending)
}

// ListFailed returns retryable failed bookings that have not reached the
// retry ceiling. Dead records are excluded until an explicit reset.
func (db *DB) ListFailed(ctx context.Context, maxRetry int) ([]models.PendingBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM pending_bookings
              WHERE status = ? AND retry_count < ? ORDER BY created_at ASC, id ASC`
	return db.queryBookings(ctx, query, models.StatusFailed, maxRetry)
}

// MarkFailed flips the record to failed, bumps the retry counter and
// records the reason.
func (db *DB) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `UPDATE pending_bookings SET status = ?, retry_count = retry_count + 1, last_error = ? WHERE id = ?`
	return db.execOne(ctx, query, models.StatusFailed, reason, id)
}

// MarkDead takes the record out of automatic retry entirely. Used for
// validation failures and records that exhausted the retry ceiling.
func (db *DB) MarkDead(ctx context.Context, id int64, reason string) error {
	query := `UPDATE pending_bookings SET status = ?, last_error = ? WHERE id = ?`
	return db.execOne(ctx, query, models.StatusDead, reason, id)
}

// ResetForRetry is an explicit operator action: back to pending with a
// clean slate.
func (db *DB) ResetForRetry(ctx context.Context, id int64) error {
	query := `UPDATE pending_bookings SET status = ?, retry_count = 0, last_error = NULL WHERE id = ?`
	return db.execOne(ctx, query, models.StatusPending, id)
}

// Delete removes the record. Only called after a confirmed remote commit.
func (db *DB) Delete(ctx context.Context, id int64) error {
	return db.execOne(ctx, `DELETE FROM pending_bookings WHERE id = ?`, id)
}

// CountPending reports the queue depth at call time.
func (db *DB) CountPending(ctx context.Context) (int, error) {
	var count int
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_bookings WHERE status = ?`, models.StatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending bookings: %w", err)
	}
	return count, nil
}

// GetBooking returns one record by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.PendingBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM pending_bookings WHERE id = ?`
	row := db.db.QueryRowContext(ctx, query, id)

	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListDead returns records excluded from automatic retry, newest first.
func (db *DB) ListDead(ctx context.Context) ([]models.PendingBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM pending_bookings
              WHERE status = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, models.StatusDead)
}

func (db *DB) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.PendingBooking, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.PendingBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.PendingBooking, error) {
	var b models.PendingBooking
	var payload string
	err := row.Scan(
		&b.ID, &b.ResourceID, &b.Units, &payload, &b.OwnerID,
		&b.TotalAmount, &b.Status, &b.RetryCount, &b.LastError, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Payload = []byte(payload)
	return &b, nil
}
