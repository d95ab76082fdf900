// Package metrics exposes the Prometheus instrumentation for the
// resolver's iterative referral chase: resolution outcomes, upstream hop
// counts, and per-upstream-query latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iterdns_resolutions_total",
			Help: "Total client queries resolved, by outcome.",
		},
		[]string{"outcome"},
	)
	upstreamHopsTotal = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iterdns_upstream_hops_total",
			Help:    "Number of upstream servers queried per client query.",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 21},
		},
		[]string{"outcome"},
	)
	upstreamQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iterdns_upstream_query_duration_seconds",
			Help:    "Latency of a single upstream query, from send to reply or timeout.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(resolutionsTotal, upstreamHopsTotal, upstreamQueryDuration)
}

// Outcome labels one of the terminal states a client query can reach.
type Outcome string

const (
	OutcomeAnswer   Outcome = "answer"
	OutcomeNXDomain Outcome = "nxdomain"
	OutcomeFormerr  Outcome = "formerr"
	OutcomeTimeout  Outcome = "timeout"
)

// RecordResolution records one completed client query: its outcome and
// how many upstream servers it took to reach that outcome.
func RecordResolution(outcome Outcome, hops int) {
	resolutionsTotal.WithLabelValues(string(outcome)).Inc()
	upstreamHopsTotal.WithLabelValues(string(outcome)).Observe(float64(hops))
}

// ObserveUpstreamQuery records the latency of a single upstream send/await
// cycle, labeled by whether it produced a reply or timed out.
func ObserveUpstreamQuery(outcome Outcome, d time.Duration) {
	upstreamQueryDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// Handler returns the promhttp handler for the metrics debug endpoint.
// resolverd exposes this on DNS_METRICS_ADDR, never on the DNS-serving
// UDP socket.
func Handler() http.Handler {
	return promhttp.Handler()
}
