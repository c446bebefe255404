package omgr

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the dispatcher's work.
type Metrics struct {
	Dispatched       prometheus.Counter
	Denied           prometheus.Counter
	Failed           prometheus.Counter
	Dropped          prometheus.Counter
	ListenerFailures prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// NewMetrics creates the dispatcher metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dobj",
			Subsystem: "omgr",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		Dispatched:       counter("events_dispatched_total", "Events applied to their target."),
		Denied:           counter("events_denied_total", "Events and subscriptions refused by an access controller."),
		Failed:           counter("events_failed_total", "Events and units that failed to process."),
		Dropped:          counter("events_dropped_total", "Events whose target no longer exists."),
		ListenerFailures: counter("listener_failures_total", "Listeners that panicked during notification."),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dobj",
			Subsystem: "omgr",
			Name:      "queue_depth",
			Help:      "Units waiting in the dispatch queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Dispatched, m.Denied, m.Failed, m.Dropped, m.ListenerFailures, m.QueueDepth)
	}
	return m
}
