package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "homevisit"

// SchedulingMetrics exposes counters/histograms for bookings and the
// background scheduler.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	remindersTotal   *prometheus.CounterVec
	rolloversTotal   prometheus.Counter
	passDuration     *prometheus.HistogramVec
	passSkippedTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment lifecycle operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Reminder candidates by outcome (sent, skipped, failed)",
		}, []string{"outcome"}),
		rolloversTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "no_show_rollovers_total",
			Help:      "Pending appointments moved to NO_SHOW",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of scheduler passes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		passSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pass_skipped_total",
			Help:      "Triggers skipped because a pass of the same task was running",
		}, []string{"task"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.remindersTotal, m.rolloversTotal, m.passDuration, m.passSkippedTotal)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) AddRollovers(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rolloversTotal.Add(float64(n))
}

func (m *SchedulingMetrics) ObservePass(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *SchedulingMetrics) ObserveSkippedPass(task string) {
	if m == nil {
		return
	}
	m.passSkippedTotal.WithLabelValues(task).Inc()
}
