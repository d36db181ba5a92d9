// Package metrics exposes Prometheus collectors for Horizons and SBDB
// fetches, the vector cache and position resolution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
	ResultMiss  = "miss"
)

var (
	horizonsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsorrery_horizons_requests_total",
			Help: "Total number of Horizons VECTORS requests by result.",
		},
		[]string{"result"},
	)

	horizonsDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lsorrery_horizons_duration_seconds",
			Help:    "Horizons request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	sbdbRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsorrery_sbdb_requests_total",
			Help: "Total number of Small-Body Database requests by result.",
		},
		[]string{"result"},
	)

	vectorCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsorrery_vector_cache_total",
			Help: "Vector cache lookups by result.",
		},
		[]string{"result"},
	)

	positionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsorrery_positions_total",
			Help: "Resolved positions by source (sampled, propagated, unpositionable).",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(horizonsRequestsTotal)
	prometheus.MustRegister(horizonsDurationSeconds)
	prometheus.MustRegister(sbdbRequestsTotal)
	prometheus.MustRegister(vectorCacheTotal)
	prometheus.MustRegister(positionsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHorizonsRequest records one Horizons round trip.
func ObserveHorizonsRequest(d time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	horizonsRequestsTotal.WithLabelValues(result).Inc()
	horizonsDurationSeconds.Observe(d.Seconds())
}

// ObserveSBDBRequest records one SBDB round trip.
func ObserveSBDBRequest(err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	sbdbRequestsTotal.WithLabelValues(result).Inc()
}

// CacheLookup records a vector cache hit or miss.
func CacheLookup(hit bool) {
	if hit {
		vectorCacheTotal.WithLabelValues(ResultHit).Inc()
		return
	}
	vectorCacheTotal.WithLabelValues(ResultMiss).Inc()
}

// PositionResolved records the source used to answer a position request.
func PositionResolved(source string) {
	positionsTotal.WithLabelValues(source).Inc()
}

// PositionsCounter returns the resolution counter for source.
func PositionsCounter(source string) prometheus.Counter {
	return positionsTotal.WithLabelValues(source)
}
