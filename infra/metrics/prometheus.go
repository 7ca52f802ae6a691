// Package metrics exports cake lifecycle events to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cake"
)

// Observer is a cake.Observer backed by Prometheus collectors.
type Observer struct {
	events *prometheus.CounterVec
	live   prometheus.Gauge

	// children of events, resolved at construction
	byEvent [cake.NumEvents]prometheus.Counter
}

// New registers the collectors with reg; a nil reg means the default
// registerer.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	o := &Observer{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cake",
			Name:      "lifecycle_events_total",
			Help:      "Lifecycle events by kind.",
		}, []string{"event"}),
		live: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "cake",
			Name:      "live_records",
			Help:      "Owner and proxy records currently allocated.",
		}),
	}
	for _, ev := range cake.Events() {
		o.byEvent[ev] = o.events.WithLabelValues(ev.String())
	}
	return o
}

func (o *Observer) Observe(ev cake.Event, _ cake.Key) {
	if int(ev) >= len(o.byEvent) {
		return
	}
	o.byEvent[ev].Inc()

	switch ev {
	case cake.EventRecordCreated, cake.EventProxyCreated:
		o.live.Inc()
	case cake.EventRecordReleased, cake.EventProxyReleased:
		o.live.Dec()
	}
}
