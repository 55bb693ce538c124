// Package observability provides Prometheus metrics for the exchange engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "groupexchange"

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Engine metrics
	CommandsTotal *prometheus.CounterVec

	// Settlement metrics
	SettlementsTotal       prometheus.Counter
	SettlementDuration     prometheus.Histogram
	LedgerEntriesPosted    prometheus.Counter
	HoursSettled           prometheus.Counter
	LedgerFailures         *prometheus.CounterVec
	SettlementShortCircuit prometheus.Counter

	// Collaborator health
	LedgerBreakerState prometheus.Gauge
	NotificationsSent  *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Total number of exchange commands by action and outcome",
		}, []string{"action", "outcome"}),

		SettlementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "completed_total",
			Help:      "Total number of exchanges settled",
		}),
		SettlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Time taken to settle an exchange",
			Buckets:   prometheus.DefBuckets,
		}),
		LedgerEntriesPosted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "ledger_entries_total",
			Help:      "Total number of ledger transactions created by settlements",
		}),
		HoursSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "hours_total",
			Help:      "Total hours moved by settlements",
		}),
		LedgerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "ledger_failures_total",
			Help:      "Total number of failed ledger postings",
		}, []string{"retryable"}),
		SettlementShortCircuit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "already_completed_total",
			Help:      "Total number of complete calls answered from an existing settlement",
		}),

		LedgerBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "breaker_state",
			Help:      "Ledger circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of notifications dispatched by kind",
		}, []string{"kind"}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCommand counts one engine command.
func (m *Metrics) RecordCommand(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.CommandsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordSettlement records a successful settlement.
func (m *Metrics) RecordSettlement(elapsed time.Duration, entries int, hours float64) {
	if m == nil {
		return
	}
	m.SettlementsTotal.Inc()
	m.SettlementDuration.Observe(elapsed.Seconds())
	m.LedgerEntriesPosted.Add(float64(entries))
	m.HoursSettled.Add(hours)
}

// RecordShortCircuit records a complete call on an already settled exchange.
func (m *Metrics) RecordShortCircuit() {
	if m == nil {
		return
	}
	m.SettlementShortCircuit.Inc()
}

// RecordLedgerFailure records a failed ledger posting.
func (m *Metrics) RecordLedgerFailure(retryable bool) {
	if m == nil {
		return
	}
	label := "false"
	if retryable {
		label = "true"
	}
	m.LedgerFailures.WithLabelValues(label).Inc()
}

// SetBreakerState records the ledger breaker state.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.LedgerBreakerState.Set(float64(state))
}

// RecordNotification counts a dispatched notification.
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind).Inc()
}
