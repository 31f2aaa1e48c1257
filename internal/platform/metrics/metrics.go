package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RegistrationsCreated prometheus.Counter
	RemindersDispatched  *prometheus.CounterVec
	DispatchFailures     prometheus.Counter
	CyclesRun            prometheus.Counter
	CycleErrors          prometheus.Counter
	CycleDuration        prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics against a specific registerer; tests pass their
// own registry to avoid duplicate registration across suites.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "remindly_registrations_created_total",
			Help: "Total number of webinar registrations created.",
		}),
		RemindersDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remindly_reminders_dispatched_total",
			Help: "Total reminder dispatches accepted for delivery, by lead-time boundary.",
		}, []string{"boundary_days"}),
		DispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "remindly_dispatch_failures_total",
			Help: "Total outbound webhook deliveries that failed.",
		}),
		CyclesRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "remindly_cycles_total",
			Help: "Total reminder evaluation cycles executed.",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "remindly_cycle_errors_total",
			Help: "Total reminder cycles that failed at the store level.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "remindly_cycle_duration_seconds",
			Help:    "Duration of one reminder evaluation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncRemindersDispatched increments the dispatch counter for one boundary.
func (m *Metrics) IncRemindersDispatched(boundaryDays int) {
	m.RemindersDispatched.WithLabelValues(strconv.Itoa(boundaryDays)).Inc()
}
