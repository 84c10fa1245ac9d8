package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toursync",
			Name:      "sync_runs_total",
			Help:      "Sync runs by outcome (completed, skipped, offline, error).",
		},
		[]string{"outcome"},
	)

	bookingsCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "toursync",
			Name:      "bookings_committed_total",
			Help:      "Bookings successfully committed to the remote store.",
		},
	)

	bookingsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toursync",
			Name:      "bookings_failed_total",
			Help:      "Booking commit attempts that failed, by reason class.",
		},
		[]string{"reason"},
	)

	pendingBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "toursync",
			Name:      "pending_backlog",
			Help:      "Bookings currently waiting in the local queue.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncRuns, bookingsCommitted, bookingsFailed, pendingBacklog)
	})
}

// IncSyncRun increments the run counter for an outcome label.
func IncSyncRun(outcome string) {
	syncRuns.WithLabelValues(outcome).Inc()
}

// IncCommitted increments the committed bookings counter.
func IncCommitted() {
	bookingsCommitted.Inc()
}

// IncFailed increments the failed bookings counter for a reason class.
func IncFailed(reason string) {
	bookingsFailed.WithLabelValues(reason).Inc()
}

// SetPendingBacklog records the current queue depth.
func SetPendingBacklog(n int) {
	pendingBacklog.Set(float64(n))
}
