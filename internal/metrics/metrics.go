// Package metrics exposes Prometheus instruments for the monitoring loops and
// a supervised HTTP server that serves them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/f1re/watchdog/internal/types"
)

const namespace = "watchdog"

var (
	// probesTotal counts health probes.
	// Labels: service, result (healthy, unhealthy)
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_total",
		Help:      "Total health probes by result",
	}, []string{"service", "result"})

	// restartsTotal counts simple restart attempts.
	// Labels: service, issued (true, false)
	restartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restarts_total",
		Help:      "Total simple restart attempts",
	}, []string{"service", "issued"})

	// escalationsTotal counts agent escalations.
	// Labels: service, outcome (recovered, failed, unknown)
	escalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalations_total",
		Help:      "Total agent escalations by reported outcome",
	}, []string{"service", "outcome"})

	// servicePhase is the current escalation phase as an ordinal
	// (0 healthy .. 5 failed).
	servicePhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "service_phase",
		Help:      "Current escalation phase (0=healthy 1=probing 2=restarting 3=escalating 4=recovering 5=failed)",
	}, []string{"service"})

	// tickDuration measures one control tick end to end.
	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one monitoring tick",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	}, []string{"service"})

	// notificationsTotal counts notification deliveries.
	// Labels: notifier, result (sent, failed)
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total notification attempts by result",
	}, []string{"notifier", "result"})
)

// ObserveProbe records one probe result
func ObserveProbe(service string, healthy bool) {
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	probesTotal.WithLabelValues(service, result).Inc()
}

// ObserveRestart records one restart attempt
func ObserveRestart(service string, issued bool) {
	label := "false"
	if issued {
		label = "true"
	}
	restartsTotal.WithLabelValues(service, label).Inc()
}

// ObserveEscalation records the outcome reported for an escalation
func ObserveEscalation(service string, outcome types.Outcome) {
	escalationsTotal.WithLabelValues(service, string(outcome)).Inc()
}

// SetPhase publishes the service's current phase
func SetPhase(service string, phase types.Phase) {
	servicePhase.WithLabelValues(service).Set(phase.Ordinal())
}

// ObserveTick records how long a tick took
func ObserveTick(service string, d time.Duration) {
	tickDuration.WithLabelValues(service).Observe(d.Seconds())
}

// ObserveNotification records a delivery attempt by the named notifier
func ObserveNotification(notifier string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(notifier, result).Inc()
}
