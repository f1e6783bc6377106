package ospf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	spfRuns             prometheus.Counter
	lsaOriginated       *prometheus.CounterVec
	lsaPurged           *prometheus.CounterVec
	lsaFlooded          *prometheus.CounterVec
	routingTableEntries prometheus.Gauge
}

// newMetrics registers with reg. A nil reg leaves the collectors
// unregistered, which is what tests want.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		spfRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "spfd_spf_runs_total",
			Help: "Number of routing table calculations.",
		}),
		lsaOriginated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spfd_lsa_originated_total",
			Help: "Number of LSA instances originated by this router.",
		}, []string{"type"}),
		lsaPurged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spfd_lsa_purged_total",
			Help: "Number of LSAs removed from the database after reaching MaxAge.",
		}, []string{"type"}),
		lsaFlooded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spfd_lsa_flooded_total",
			Help: "Number of LSAs queued for transmission on an interface.",
		}, []string{"type"}),
		routingTableEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "spfd_routing_table_entries",
			Help: "Number of entries in the current routing table.",
		}),
	}
}
