// Package metrics exposes prometheus counters for the dispatch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fusshn/booking-notifier/internal/eventbus"
)

// Metrics holds the notifier's prometheus collectors.
type Metrics struct {
	// EventsTotal counts change-feed events by change kind.
	EventsTotal *prometheus.CounterVec
	// DispatchesTotal counts recorded delivery outcomes by status.
	DispatchesTotal *prometheus.CounterVec
	// SubscriptionFaults counts change-feed listener faults.
	SubscriptionFaults prometheus.Counter
}

// New registers the notifier's collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_notifier_feed_events_total",
			Help: "Change-feed events received, by change kind.",
		}, []string{"kind"}),
		DispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_notifier_dispatches_total",
			Help: "Delivery outcomes recorded, by status.",
		}, []string{"status"}),
		SubscriptionFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "booking_notifier_subscription_faults_total",
			Help: "Change-feed subscription faults that triggered a reconnect.",
		}),
	}
}

// ObserveEvent counts one received change-feed event.
func (m *Metrics) ObserveEvent(kind string) {
	m.EventsTotal.WithLabelValues(kind).Inc()
}

// ObserveFault counts one subscription fault.
func (m *Metrics) ObserveFault() {
	m.SubscriptionFaults.Inc()
}

// OutcomeListener returns an eventbus listener that counts outcomes.
func (m *Metrics) OutcomeListener() eventbus.Listener {
	return func(e eventbus.Event) {
		m.DispatchesTotal.WithLabelValues(string(e.Outcome.Status)).Inc()
	}
}
