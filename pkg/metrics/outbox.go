package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish outcomes.
const (
	OutboxPublished = "published"
	OutboxRetried   = "retried"
	OutboxParked    = "parked"
)

// OutboxMetrics counts what the publisher did with each outbox row.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_batches_total",
		Help: "Non-empty outbox batches processed.",
	})
	reg.MustRegister(events, batches)
	return &OutboxMetrics{events: events, batches: batches}
}

func (m *OutboxMetrics) Event(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) Batch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
