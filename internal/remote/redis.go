package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"toursync/internal/config"
	"toursync/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// maxTxRetries bounds re-runs of the optimistic transaction when another
// writer touches the watched keys between read and commit.
const maxTxRetries = 3

// RedisStore implements the remote transaction protocol against a Redis
// document store. Layout: tour:{id} hash with a remaining counter,
// checkout:{uuid} and invoice:{uuid} hashes cross-linked by id, and a
// commit:{device}:{localID} marker that makes a re-attempt of an already
// committed booking return the prior invoice instead of double-booking.
type RedisStore struct {
	client   *redis.Client
	deviceID string
	logger   *zerolog.Logger
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RemoteConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStore(client *redis.Client, deviceID string, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, deviceID: deviceID, logger: logger}
}

func resourceKey(id string) string { return "tour:" + id }
func checkoutKey(id string) string { return "checkout:" + id }
func invoiceKey(id string) string  { return "invoice:" + id }

func (s *RedisStore) commitKey(localID int64) string {
	return fmt.Sprintf("commit:%s:%d", s.deviceID, localID)
}

// CommitBooking reserves capacity and materializes the checkout/invoice
// pair as a single all-or-nothing operation. Every error wraps one of
// the sentinels in errors.go; it never panics past this boundary.
func (s *RedisStore) CommitBooking(ctx context.Context, booking *models.PendingBooking) (*models.CommitResult, error) {
	if booking.Units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1, got %d", ErrValidation, booking.Units)
	}
	if booking.ResourceID == "" {
		return nil, fmt.Errorf("%w: resource id is empty", ErrValidation)
	}

	payload, err := booking.DecodePayload()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ErrValidation, err)
	}

	// Non-authoritative pre-check. Allowed to be stale: a race here only
	// wastes a transaction attempt, the in-transaction re-read decides.
	remaining, err := s.Remaining(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	if remaining < int64(booking.Units) {
		return nil, fmt.Errorf("%w: %d remaining, %d requested", ErrCapacityExceeded, remaining, booking.Units)
	}

	resKey := resourceKey(booking.ResourceID)
	cmtKey := s.commitKey(booking.ID)

	var result models.CommitResult

	txf := func(tx *redis.Tx) error {
		// Idempotency: a crash between remote commit and local delete
		// must not create a second booking on the next run.
		prior, err := tx.Get(ctx, cmtKey).Result()
		if err == nil {
			checkoutID, hgetErr := tx.HGet(ctx, invoiceKey(prior), "checkout_id").Result()
			if hgetErr != nil && !errors.Is(hgetErr, redis.Nil) {
				return hgetErr
			}
			result = models.CommitResult{CheckoutID: checkoutID, InvoiceID: prior}
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}

		// Authoritative capacity check inside the transaction.
		current, err := tx.HGet(ctx, resKey, "remaining").Int64()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: resource %q not found", ErrValidation, booking.ResourceID)
		}
		if err != nil {
			return err
		}
		if current < int64(booking.Units) {
			return fmt.Errorf("%w: %d remaining, %d requested", ErrCapacityExceeded, current, booking.Units)
		}

		checkoutID := uuid.NewString()
		invoiceID := uuid.NewString()
		// Unique per attempt so a retry never collides with a prior
		// partial record.
		transactionID := fmt.Sprintf("offline_%d_%d", time.Now().UnixMilli(), booking.ID)

		details, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: encode invoice details: %v", ErrValidation, err)
		}

		now := time.Now().UTC()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, resKey, "remaining", -int64(booking.Units))

			pipe.HSet(ctx, checkoutKey(checkoutID), map[string]interface{}{
				"amount":         booking.TotalAmount,
				"payment_date":   now.Format(time.RFC3339),
				"payment_method": models.PaymentMethodOffline,
				"payment_status": models.PaymentStatusPending,
				"transaction_id": transactionID,
				"owner_id":       booking.OwnerID,
				"booking_ref":    booking.ID,
			})

			pipe.HSet(ctx, invoiceKey(invoiceID), map[string]interface{}{
				"amount":         booking.TotalAmount,
				"date_issued":    now.Format(time.RFC3339),
				"checkout_id":    checkoutID,
				"payment_status": models.PaymentStatusPending,
				"owner_id":       booking.OwnerID,
				"details":        string(details),
			})

			// Forward-reference completes the mutual link; still inside
			// the same atomic commit.
			pipe.HSet(ctx, checkoutKey(checkoutID), "invoice_id", invoiceID)

			pipe.Set(ctx, cmtKey, invoiceID, 0)
			return nil
		})
		if err != nil {
			return err
		}

		result = models.CommitResult{CheckoutID: checkoutID, InvoiceID: invoiceID}
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, resKey, cmtKey)
		if err == nil {
			return &result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer consumed capacity between read and commit;
			// re-run with a fresh read.
			s.logger.Debug().Int64("booking_id", booking.ID).Int("attempt", attempt+1).
				Msg("Commit transaction conflicted, retrying")
			continue
		}
		return nil, classify(err)
	}

	return nil, fmt.Errorf("%w: transaction conflicted %d times", ErrRemoteUnavailable, maxTxRetries)
}

// Remaining reads the capacity counter outside any transaction.
func (s *RedisStore) Remaining(ctx context.Context, resourceID string) (int64, error) {
	val, err := s.client.HGet(ctx, resourceKey(resourceID), "remaining").Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: resource %q not found", ErrValidation, resourceID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read remaining: %v", ErrRemoteUnavailable, err)
	}

	remaining, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: remaining is not an integer: %v", ErrRemoteUnavailable, err)
	}
	return remaining, nil
}

// SeedResource writes a capacity resource. Used by provisioning and tests.
func (s *RedisStore) SeedResource(ctx context.Context, res models.Resource) error {
	err := s.client.HSet(ctx, resourceKey(res.ID), map[string]interface{}{
		"title":     res.Title,
		"remaining": res.Remaining,
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: seed resource: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// GetCheckout reads a checkout record back.
func (s *RedisStore) GetCheckout(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	fields, err := s.client.HGetAll(ctx, checkoutKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read checkout: %v", ErrRemoteUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("checkout %q not found", id)
	}

	rec := &models.CheckoutRecord{
		ID:            id,
		PaymentMethod: fields["payment_method"],
		PaymentStatus: fields["payment_status"],
		TransactionID: fields["transaction_id"],
		OwnerID:       fields["owner_id"],
		InvoiceID:     fields["invoice_id"],
	}
	rec.Amount, _ = strconv.ParseFloat(fields["amount"], 64)
	rec.BookingRef, _ = strconv.ParseInt(fields["booking_ref"], 10, 64)
	rec.PaymentDate, _ = time.Parse(time.RFC3339, fields["payment_date"])
	return rec, nil
}

// GetInvoice reads an invoice record back.
func (s *RedisStore) GetInvoice(ctx context.Context, id string) (*models.InvoiceRecord, error) {
	fields, err := s.client.HGetAll(ctx, invoiceKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read invoice: %v", ErrRemoteUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("invoice %q not found", id)
	}

	rec := &models.InvoiceRecord{
		ID:            id,
		CheckoutID:    fields["checkout_id"],
		PaymentStatus: fields["payment_status"],
		OwnerID:       fields["owner_id"],
		Details:       fields["details"],
	}
	rec.Amount, _ = strconv.ParseFloat(fields["amount"], 64)
	rec.DateIssued, _ = time.Parse(time.RFC3339, fields["date_issued"])
	return rec, nil
}

// Ping проверяет соединение с Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	if _, err := s.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrValidation) || errors.Is(err, ErrRemoteUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}
