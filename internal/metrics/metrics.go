package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_bot",
			Name:      "booking_created_total",
			Help:      "Count of booking claims by outcome.",
		},
		[]string{"outcome"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking_bot",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by users.",
		},
	)

	reminderDispatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_bot",
			Name:      "reminder_dispatch_total",
			Help:      "Count of reminder dispatch attempts by result.",
		},
		[]string{"result"},
	)

	rosterExport = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "booking_bot",
			Name:      "roster_export_total",
			Help:      "Count of admin roster exports.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, reminderDispatch, rosterExport)
	})
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncReminderDispatch(result string) {
	reminderDispatch.WithLabelValues(result).Inc()
}

func IncRosterExport() {
	rosterExport.Inc()
}
