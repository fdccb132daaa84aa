package diagnostics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters the overlay reports at /metrics. They
// are safe for concurrent use, being backed by prometheus.Counter.
type Metrics struct {
	LookupsServed        prometheus.Counter
	LookupsForwarded     prometheus.Counter
	StabilizationTicks   prometheus.Counter
	GossipMergesAdopted  prometheus.Counter
	GossipMergesRejected prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers the overlay's counters against reg and returns
// handles to each.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		LookupsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordring_lookups_served_total",
			Help: "Number of FIND_SUCCESSOR_OF_NODE requests answered directly.",
		}),
		LookupsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordring_lookups_forwarded_total",
			Help: "Number of FIND_SUCCESSOR_OF_NODE requests forwarded to a closer node.",
		}),
		StabilizationTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordring_stabilization_ticks_total",
			Help: "Number of successful stabilization rounds completed.",
		}),
		GossipMergesAdopted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordring_gossip_merges_adopted_total",
			Help: "Number of gossip reconciliations that adopted a peer's value.",
		}),
		GossipMergesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordring_gossip_merges_rejected_total",
			Help: "Number of gossip reconciliations that kept the local value.",
		}),
	}

	reg.MustRegister(
		m.LookupsServed,
		m.LookupsForwarded,
		m.StabilizationTicks,
		m.GossipMergesAdopted,
		m.GossipMergesRejected,
	)

	return m
}
