package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"toursync/internal/config"
	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/metrics"
	"toursync/internal/models"
	"toursync/internal/remote"

	"github.com/rs/zerolog"
)

// Orchestrator drains the local pending store through the remote
// transaction protocol. One logical run executes at a time; concurrent
// triggers are dropped, not queued. The queue persists, so a lost
// redundant trigger is harmless.
type Orchestrator struct {
	queue   domain.Queue
	remote  domain.Committer
	monitor domain.Monitor
	bus     domain.EventPublisher
	logger  *zerolog.Logger

	itemDelay time.Duration
	maxRetry  int
	cooldown  time.Duration
	retry     RetryPolicy

	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
}

func NewOrchestrator(queue domain.Queue, committer domain.Committer, monitor domain.Monitor, bus domain.EventPublisher, cfg config.SyncConfig, logger *zerolog.Logger) *Orchestrator {
	itemDelay := cfg.ItemDelay()
	if itemDelay <= 0 {
		itemDelay = time.Second
	}
	maxRetry := cfg.MaxRetries
	if maxRetry <= 0 {
		maxRetry = models.DefaultMaxRetries
	}

	return &Orchestrator{
		queue:     queue,
		remote:    committer,
		monitor:   monitor,
		bus:       bus,
		logger:    logger,
		itemDelay: itemDelay,
		maxRetry:  maxRetry,
		cooldown:  cfg.Cooldown(),
		retry: RetryPolicy{
			MaxRetries:    maxRetry,
			InitialDelay:  itemDelay,
			MaxDelay:      10 * itemDelay,
			BackoffFactor: 2,
		},
	}
}

// RunOnce executes one sync run: drain pending FIFO, then one bounded
// retry pass over failed records. Returns an empty result without error
// when a run is already in progress or the device is offline. A run-level
// error means the local store itself failed; per-item failures are
// reported in the result, never as an error.
func (o *Orchestrator) RunOnce(ctx context.Context) (models.BatchResult, error) {
	var result models.BatchResult

	if !o.running.CompareAndSwap(false, true) {
		o.logger.Debug().Msg("Sync already in progress, skipping")
		metrics.IncSyncRun("skipped")
		return result, nil
	}
	defer o.running.Store(false)

	o.mu.Lock()
	o.lastRun = time.Now()
	o.mu.Unlock()

	if !o.monitor.IsOnline(ctx) {
		o.logger.Debug().Msg("Offline, skipping sync run")
		metrics.IncSyncRun("offline")
		return result, nil
	}

	started := time.Now()

	pending, err := o.queue.ListPending(ctx)
	if err != nil {
		metrics.IncSyncRun("error")
		return result, fmt.Errorf("list pending: %w", err)
	}

	o.logger.Info().Int("pending", len(pending)).Msg("Sync run started")

	capacityFailed := make(map[int64]struct{})
	aborted := o.drain(ctx, pending, &result, false, capacityFailed)

	if !aborted {
		failed, err := o.queue.ListFailed(ctx, o.maxRetry)
		if err != nil {
			metrics.IncSyncRun("error")
			return result, fmt.Errorf("list failed: %w", err)
		}
		retryable := failed[:0]
		for i := range failed {
			// A capacity rejection from this same run cannot succeed yet;
			// the record waits for the next run, when a cancellation
			// elsewhere may have freed seats.
			if _, ok := capacityFailed[failed[i].ID]; ok {
				continue
			}
			retryable = append(retryable, failed[i])
		}
		if len(retryable) > 0 {
			o.logger.Info().Int("failed", len(retryable)).Msg("Retrying failed bookings")
			o.drain(ctx, retryable, &result, true, capacityFailed)
		}
	}

	o.updateBacklog(ctx)
	metrics.IncSyncRun("completed")

	o.logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Dur("took", time.Since(started)).
		Msg("Sync run finished")

	_ = o.bus.PublishJSON(events.EventSyncCompleted, events.SyncEventPayload{
		Result:     result,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})

	return result, nil
}

// TriggerNow is the manual trigger. It shares the single-flight guard
// with the periodic runner but is not subject to the cooldown.
func (o *Orchestrator) TriggerNow(ctx context.Context) (models.BatchResult, error) {
	return o.RunOnce(ctx)
}

// StartPeriodic runs immediately, then on a fixed interval. A scheduled
// tick is skipped when less than the cooldown elapsed since the last run
// started, so a manual trigger and a tick firing close together do not
// double-drain. The returned cancel stops future ticks only; an in-flight
// run finishes on the parent context.
func (o *Orchestrator) StartPeriodic(ctx context.Context, interval time.Duration, onComplete func(models.BatchResult)) context.CancelFunc {
	loopCtx, cancel := context.WithCancel(context.Background())

	go func() {
		o.performScheduled(ctx, onComplete)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				o.logger.Info().Msg("Periodic sync stopped")
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.performScheduled(ctx, onComplete)
			}
		}
	}()

	return cancel
}

func (o *Orchestrator) performScheduled(ctx context.Context, onComplete func(models.BatchResult)) {
	o.mu.Lock()
	sinceLast := time.Since(o.lastRun)
	tooSoon := !o.lastRun.IsZero() && sinceLast < o.cooldown
	o.mu.Unlock()

	if tooSoon {
		o.logger.Debug().Dur("since_last", sinceLast).Msg("Too soon since last sync, skipping tick")
		metrics.IncSyncRun("skipped")
		return
	}

	result, err := o.RunOnce(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("Scheduled sync run failed")
		return
	}

	// Never surface an empty notification.
	if onComplete != nil && !result.Empty() {
		onComplete(result)
	}
}

// drain processes items in order. It returns true when the batch was
// aborted (connectivity lost or context canceled); items not yet reached
// keep their current status untouched.
func (o *Orchestrator) drain(ctx context.Context, items []models.PendingBooking, result *models.BatchResult, retryPass bool, capacityFailed map[int64]struct{}) bool {
	for i := range items {
		booking := &items[i]

		if ctx.Err() != nil {
			return true
		}
		if !o.monitor.IsOnline(ctx) {
			o.logger.Warn().Int("remaining", len(items)-i).Msg("Lost connectivity mid-run, aborting batch")
			return true
		}

		o.processOne(ctx, booking, result, capacityFailed)

		if i < len(items)-1 {
			delay := o.itemDelay
			if retryPass {
				delay = o.retry.NextDelay(booking.RetryCount + 1)
			}
			select {
			case <-ctx.Done():
				return true
			case <-time.After(delay):
			}
		}
	}
	return false
}

func (o *Orchestrator) processOne(ctx context.Context, booking *models.PendingBooking, result *models.BatchResult, capacityFailed map[int64]struct{}) {
	commit, err := o.remote.CommitBooking(ctx, booking)
	if err != nil {
		reason := err.Error()
		o.logger.Warn().Int64("booking_id", booking.ID).Str("reason", reason).Msg("Booking commit failed")

		if errors.Is(err, remote.ErrCapacityExceeded) {
			capacityFailed[booking.ID] = struct{}{}
		}

		if remote.IsTerminal(err) {
			if markErr := o.queue.MarkDead(ctx, booking.ID, reason); markErr != nil {
				o.logger.Error().Err(markErr).Int64("booking_id", booking.ID).Msg("Failed to mark booking dead")
			}
		} else {
			if markErr := o.queue.MarkFailed(ctx, booking.ID, reason); markErr != nil {
				o.logger.Error().Err(markErr).Int64("booking_id", booking.ID).Msg("Failed to mark booking failed")
			}
		}

		metrics.IncFailed(remote.ReasonClass(err))
		result.Failed = append(result.Failed, models.SyncFailure{BookingID: booking.ID, Reason: reason})

		_ = o.bus.PublishJSON(events.EventBookingFailed, events.BookingEventPayload{
			BookingID:  booking.ID,
			ResourceID: booking.ResourceID,
			OwnerID:    booking.OwnerID,
			Units:      booking.Units,
			Amount:     booking.TotalAmount,
			Reason:     reason,
		})
		return
	}

	// The idempotency marker on the remote side covers a crash between
	// this commit and the local delete: the next attempt returns the
	// same invoice instead of booking twice.
	if err := o.queue.Delete(ctx, booking.ID); err != nil {
		o.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to delete committed booking from queue")
	}

	title := ""
	if payload, decodeErr := booking.DecodePayload(); decodeErr == nil {
		title = payload.TourTitle
	}

	metrics.IncCommitted()
	result.Succeeded = append(result.Succeeded, models.SyncSuccess{
		BookingID: booking.ID,
		TourTitle: title,
		InvoiceID: commit.InvoiceID,
	})

	o.logger.Info().Int64("booking_id", booking.ID).Str("invoice_id", commit.InvoiceID).Msg("Booking committed")

	_ = o.bus.PublishJSON(events.EventBookingCommitted, events.BookingEventPayload{
		BookingID:  booking.ID,
		ResourceID: booking.ResourceID,
		OwnerID:    booking.OwnerID,
		Units:      booking.Units,
		Amount:     booking.TotalAmount,
		InvoiceID:  commit.InvoiceID,
	})
}

func (o *Orchestrator) updateBacklog(ctx context.Context) {
	count, err := o.queue.CountPending(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to read pending backlog")
		return
	}
	metrics.SetPendingBacklog(count)
}
