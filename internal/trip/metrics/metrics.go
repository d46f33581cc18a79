package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trip module.
// Tracks booking outcomes, payment activity, and critical path durations.
type Metrics struct {
	RegistrationsCreated prometheus.Counter
	CapacityExhausted    prometheus.Counter
	PaymentsRecorded     prometheus.Counter
	Cancellations        prometheus.Counter
	BookingDuration      prometheus.Histogram
	StatisticsDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all trip module metrics registered.
func New() *Metrics {
	return &Metrics{
		RegistrationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rihla_registrations_created_total",
			Help: "Total number of registrations booked",
		}),
		CapacityExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rihla_bookings_capacity_exhausted_total",
			Help: "Total number of bookings rejected because the trip was full",
		}),
		PaymentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rihla_payments_recorded_total",
			Help: "Total number of payments applied to registrations",
		}),
		Cancellations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rihla_registrations_cancelled_total",
			Help: "Total number of registrations cancelled",
		}),
		BookingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rihla_booking_duration_seconds",
			Help:    "Duration of the booking atomic unit (capacity critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StatisticsDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rihla_statistics_duration_seconds",
			Help:    "Duration of the statistics rollup including cache lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRegistrationsCreated records a successful booking.
func (m *Metrics) IncrementRegistrationsCreated() {
	m.RegistrationsCreated.Inc()
}

// IncrementCapacityExhausted records a booking rejected for lack of spots.
func (m *Metrics) IncrementCapacityExhausted() {
	m.CapacityExhausted.Inc()
}

// IncrementPaymentsRecorded records an applied payment.
func (m *Metrics) IncrementPaymentsRecorded() {
	m.PaymentsRecorded.Inc()
}

// IncrementCancellations records a cancelled registration.
func (m *Metrics) IncrementCancellations() {
	m.Cancellations.Inc()
}

// ObserveBooking records the duration of a booking attempt.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveBooking(start time.Time) {
	m.BookingDuration.Observe(time.Since(start).Seconds())
}

// ObserveStatistics records the duration of a statistics rollup.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStatistics(start time.Time) {
	m.StatisticsDuration.Observe(time.Since(start).Seconds())
}
