package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
	Votes       *prometheus.CounterVec
	Links       *prometheus.CounterVec
	Commands    *prometheus.CounterVec
}

// New registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry(); main passes the default registerer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		APIRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Requests sent to the awards API by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		),
		APILatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency of awards API requests",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms .. ~5s
			},
			[]string{"endpoint"},
		),
		Votes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "voting",
				Name:      "submissions_total",
				Help:      "Vote submissions by outcome (accepted, already_voted, failed)",
			},
			[]string{"outcome"},
		),
		Links: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "admin",
				Name:      "nomination_links_total",
				Help:      "Nomination link requests by result",
			},
			[]string{"result"},
		),
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bot",
				Name:      "commands_total",
				Help:      "Bot commands received",
			},
			[]string{"command"},
		),
	}
}

// Nop returns metrics bound to a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry(), "awards")
}
