package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters shared by the webhook pipeline and the sweeper.
type Metrics struct {
	WebhookEvents *prometheus.CounterVec // outcome: processed | duplicate | ignored | rejected | failed
	SweeperRuns   prometheus.Counter
	SweeperLocked prometheus.Counter
	SweeperErrors prometheus.Counter
}

// NewRegistry holds only application metrics. Runtime and database pool
// collectors live in the default registry; the metrics endpoint gathers both.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "launchkit",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events by type and processing outcome.",
		}, []string{"event_type", "outcome"}),
		SweeperRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchkit",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Grace period sweeper runs.",
		}),
		SweeperLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchkit",
			Subsystem: "sweeper",
			Name:      "locked_total",
			Help:      "Subscriptions locked after an elapsed grace period.",
		}),
		SweeperErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "launchkit",
			Subsystem: "sweeper",
			Name:      "errors_total",
			Help:      "Per-subscription sweep failures.",
		}),
	}
	reg.MustRegister(m.WebhookEvents, m.SweeperRuns, m.SweeperLocked, m.SweeperErrors)
	return m
}
